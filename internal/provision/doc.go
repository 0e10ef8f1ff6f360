// Package provision implements the serial provisioning protocol used to
// bring an unconfigured device into an operational state.
//
// The protocol is line-delimited JSON, one object per line in each
// direction. A host connected to the device's serial channel sends
// commands; the device answers each dispatched command with exactly one
// response line.
//
// Commands (host to device):
//
//	{"cmd": "get_info"}                                    - device info (MAC, type, version)
//	{"cmd": "get_config"}                                  - current configuration (passwords masked)
//	{"cmd": "set_wifi", "ssid": "...", "password": "..."}  - set primary WiFi
//	{"cmd": "set_wifi_backup", "ssid": "...", "password": "..."} - set backup WiFi
//	{"cmd": "set_server", "url": "http://..."}             - set server URL
//	{"cmd": "provision"}                                   - mark device provisioned
//	{"cmd": "reset"}                                       - clear all config and restart
//	{"cmd": "reboot"}                                      - restart device
//
// Responses (device to host):
//
//	{"status": "ok", ...}                                  - success
//	{"status": "error", "msg": "..."}                      - failure
//
// The handler is a small state machine: it accumulates bytes into a
// bounded line buffer, dispatches on each terminator, and enters the
// terminal RestartPending state when provision, reset or reboot is
// accepted. The embedding loop must stop feeding it at that point and
// perform the actual device restart.
//
// provision validates that an SSID and a server URL are already stored;
// otherwise it reports wifi_not_configured or server_not_configured and
// stays in the session. Malformed JSON, unknown commands, missing
// fields and oversized lines all produce an error response and mutate
// nothing.
package provision
