// Package preflight provides readiness checks for the filesystem paths and
// external binaries radiocap depends on.
//
// The daemon logs RunAll at startup so a missing recordings directory or an
// uninstalled capture tool shows up before the first airing, and the CLI
// "radiocap status" command renders the same results.
package preflight
