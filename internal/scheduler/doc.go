// Package scheduler turns resolved airings into capture sessions.
//
// It keeps a min-heap of pending trigger instants, a fixed number per
// airing. Each tick pops the due entries, replaces every popped instant with
// the airing's next one, and hands the due triggers to the capture manager
// in time order. When the daemon falls behind, only the most recent due
// instant of an airing fires; the backlog is skipped.
package scheduler
