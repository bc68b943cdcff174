// Package daemonctl holds the CLI-side orchestration for the daemon
// process: launching it detached, waiting for its socket, stopping it with
// a force-kill fallback, and assembling the status view that works whether
// or not the daemon is running.
package daemonctl
