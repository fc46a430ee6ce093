// Package logging provides structured logging for mdnswatch.
//
// This package wraps a process-wide zap logger with convenience functions.
// Components take a child logger from Named so every line carries the
// component that produced it.
//
// # Log Levels
//
//   - Debug: every routed protocol event, query failures, snapshot changes
//   - Info: hosts appearing and disappearing, advertise/unadvertise, conflict cleared
//   - Warn: naming conflicts, failed advertisements
//   - Error: startup failures
//
// # Configuration
//
// Logging is silent unless a level is given, either on the command line or
// through MDNSWATCH_LOG_LEVEL:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr in console format so it does not interleave with
// snapshot output on stdout.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
