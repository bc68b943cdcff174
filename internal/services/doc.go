// Package services defines shared utilities consumed by the scheduler, the
// capture engine, and the control surfaces.
//
// Key responsibilities:
//   - Context helpers that stamp show IDs, capture session IDs, component
//     names, and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures keep their
//     classification (configuration, tool launch, tool output, resource
//     exhaustion, persistence) while carrying human-readable context.
//
// Use these helpers when wiring new components so operational behaviour
// (error reporting, observability) stays uniform across the daemon.
package services
