// Package logging provides structured logging for the LightwaveRF bridge.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used by the hub connections, the delivery queue and the CLI.
//
// # Log Levels
//
//   - Debug: wire dumps, ack bookkeeping, heartbeat pings
//   - Info: connections, registration, login, state updates
//   - Warn: retries, decode failures, dropped messages
//   - Error: terminal command failures, transport failures
//
// # Structured Logging
//
//	logging.Info("Command acknowledged",
//	    zap.String("link", "legacy"),
//	    zap.String("message_id", "104"),
//	    zap.Int("attempts", 2),
//	)
//
// # Configuration
//
// Logging is silent unless a level is passed to Initialize or the
// LIGHTWAVE_LOG_LEVEL environment variable is set:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr so that CLI output on stdout stays machine readable.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use once Initialize has
// returned. Initialize and SetLogger are meant to be called at startup.
package logging
