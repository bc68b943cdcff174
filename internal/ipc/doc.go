// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Most
// payloads alias the HTTP DTOs in internal/api so both control surfaces
// render the same shapes. Show and station references are strings that may
// hold either a numeric id or a key/call sign; the daemon resolves them.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
