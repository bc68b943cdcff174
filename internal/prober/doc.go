// Package prober records a few seconds of a station's stream with each
// capture tool and stores which tool works. Sessions consult the stored
// recommendation before falling back to the URL signature table.
package prober
