package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

// Stop requests the daemon to stop and exit.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sessions lists live captures.
func (c *Client) Sessions() (*SessionsResponse, error) {
	var resp SessionsResponse
	if err := c.call("Sessions", SessionsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopSession stops the live capture of show (an id or key).
func (c *Client) StopSession(show string) (*StopSessionResponse, error) {
	var resp StopSessionResponse
	if err := c.call("StopSession", StopSessionRequest{Show: show}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshAll rebuilds every show's schedule.
func (c *Client) RefreshAll() (*RefreshResponse, error) {
	var resp RefreshResponse
	if err := c.call("RefreshAll", RefreshAllRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshShow rebuilds the schedule of show (an id or key).
func (c *Client) RefreshShow(show string) (*RefreshResponse, error) {
	var resp RefreshResponse
	if err := c.call("RefreshShow", RefreshShowRequest{Show: show}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Trigger starts a manual capture.
func (c *Client) Trigger(req TriggerRequest) (*TriggerResponse, error) {
	var resp TriggerResponse
	if err := c.call("Trigger", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestStation probes every capture tool against station (an id or call sign).
func (c *Client) TestStation(station string) (*TestStationResponse, error) {
	var resp TestStationResponse
	if err := c.call("TestStation", TestStationRequest{Station: station}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pending lists pending triggers, optionally for one show.
func (c *Client) Pending(show string) (*PendingResponse, error) {
	var resp PendingResponse
	if err := c.call("Pending", PendingRequest{Show: show}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Recordings lists recordings newest first.
func (c *Client) Recordings(req RecordingsRequest) (*RecordingsResponse, error) {
	var resp RecordingsResponse
	if err := c.call("Recordings", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stations lists stations.
func (c *Client) Stations() (*StationsResponse, error) {
	var resp StationsResponse
	if err := c.call("Stations", StationsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reap runs a retention sweep.
func (c *Client) Reap() (*ReapResponse, error) {
	var resp ReapResponse
	if err := c.call("Reap", ReapRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ImportCatalog loads a catalog file into the daemon's store.
func (c *Client) ImportCatalog(path string) (*ImportCatalogResponse, error) {
	var resp ImportCatalogResponse
	if err := c.call("ImportCatalog", ImportCatalogRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
