// Package logging provides structured logging for the SMD agent.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the agent. It provides both general logging
// functions and specialized functions for device lifecycle events.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (raw serial lines, response bodies)
//   - Info: Normal operations (heartbeats, provisioning commands, renders)
//   - Warn: Non-fatal issues (fetch failures, reconnect attempts)
//   - Error: Fatal issues (startup failures, unusable credential store)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("WiFi connected",
//	    zap.String("ssid", "FactoryNet"),
//	    zap.String("ip", "192.168.1.41"),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
//	logging.LogHeartbeat(mac, serverVersion, localVersion)
//	logging.LogProvisionCommand("set_wifi", "ok", "wifi_set")
//	logging.LogConfigRefresh(oldVersion, newVersion, ok)
//
// # Configuration
//
// Initialize logging at agent startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given, the SMD_LOG_LEVEL environment variable is
// consulted; if it is also unset, logging is silent. Silent-by-default
// matters here because the agent's stdout doubles as the provisioning
// serial channel on headless devices.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
