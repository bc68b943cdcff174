// Command radiocap is the command-line front end for the radiocap daemon.
// Most subcommands talk to a running daemon over its Unix socket; the
// catalog and config commands also work with the daemon stopped.
package main
