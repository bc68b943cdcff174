// Package capture runs recording sessions.
//
// The Manager keeps a registry of live sessions keyed by show id. Start
// inserts the session synchronously, so a second trigger for the same show
// sees OutcomeAlreadyRunning even while the first is still waiting for one
// of the capture.max_concurrent slots. Each session goroutine walks the
// tool chain from the tools registry: every tool runs once, in its own
// process group, writing into its own staging directory, with a hard limit
// of the remaining planned duration plus the grace window. Attempts that
// launch but leave too little output, or fail well before their planned
// end, hand the remaining time to the next tool.
//
// The chosen output is moved into paths.recordings_dir and recorded in the
// store. Every attempt, including slot-wait drops, leaves a capture_attempts
// row so failures can be traced tool by tool.
package capture
