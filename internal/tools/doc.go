// Package tools is the capture tool capability registry.
//
// It decides which external program records a station's stream. Decisions
// are data-driven: an ordered table of URL signature rules picks the first
// tool, a separately configured fallback order supplies the rest of the
// chain, and a fresh probe recommendation stored on the station overrides
// both. Command builds the bounded argv for each tool.
package tools
