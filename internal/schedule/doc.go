// Package schedule turns airing patterns into absolute trigger instants.
//
// Patterns are five-field cron expressions (minute hour day-of-month month
// day-of-week) written in wall-clock time of the show's timezone, falling
// back to the station's timezone and then UTC. Resolved instants are always
// UTC. Each active airing resolves independently: a bad pattern on one
// airing is reported in Resolution.Errors and the remaining airings still
// produce triggers.
package schedule
