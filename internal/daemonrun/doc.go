// Package daemonrun hosts the daemon process: logging setup, the pid file,
// the store, the daemon itself and its IPC socket, torn down together when
// a signal or a stop request arrives.
package daemonrun
