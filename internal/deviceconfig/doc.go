// Package deviceconfig manages the server-synchronized operational
// configuration of an SMD device.
//
// The configuration is a flat record of independently-defaulted fields
// (check-in cadence, display presentation, power management, content
// selection) plus a single integer version tag tracked by the
// management server.
//
// # Sparse merge
//
// Server responses carry an optional subset of fields. Only fields
// present in the response overwrite local state; everything else keeps
// its prior value. Combined with compiled-in defaults this guarantees
// no field is ever unset, no matter how partial or broken a response is.
//
// # Version tags
//
// config_version is compared for equality, never ordering. The server
// is always trusted: if its tag differs from ours in either direction
// (including a rollback to a lower number), the device refreshes. The
// device never increments the version itself.
//
// # Failure handling
//
// A failed fetch leaves the configuration untouched and returns false.
// Retries are the heartbeat loop's responsibility, on its own schedule.
package deviceconfig
