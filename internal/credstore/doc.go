// Package credstore persists the device's network identity across
// restarts: primary and backup WiFi credentials, the management server
// URL, and the provisioned flag.
//
// The store is the durable-storage analogue of the ESP32 firmware's NVS
// namespace. It is a single YAML file, rewritten atomically on every
// mutation, with an open-operate-close discipline per call: nothing is
// held open or cached between operations, so a crash at any point leaves
// the file either in its previous or its new state, never half-written.
//
// Field lengths are bounded (SSID 32, password 64, URL 256 characters).
// Setters reject over-long values with ErrValueTooLong and keep the
// prior value; they never truncate silently.
//
// A store that cannot be read (missing file, permissions, corrupt YAML)
// reads as an unprovisioned device. That failure mode drops the device
// back into provisioning mode on next boot instead of crashing it.
package credstore
