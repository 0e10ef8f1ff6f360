package provision

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/smdworks/smdagent/internal/credstore"
	"github.com/smdworks/smdagent/internal/logging"
)

// BufferSize is the serial line buffer capacity. A line that reaches
// this size before a terminator arrives is rejected with
// "command_too_long" and discarded.
const BufferSize = 512

// State is the handler's protocol state.
type State int

const (
	// StateAwaitingCommand accumulates bytes into the line buffer and
	// dispatches on each complete line.
	StateAwaitingCommand State = iota

	// StateRestartPending is terminal: a provision, reset or reboot
	// command was accepted. The driving loop must stop feeding the
	// handler and restart the device.
	StateRestartPending
)

// DeviceInfo is the static identity reported by get_info.
type DeviceInfo struct {
	MAC     string
	Type    string
	Version string
}

// Handler is the line-buffered JSON command interpreter used to
// provision an unconfigured device over its serial channel. It is
// single-threaded and cooperative: feed it bytes, it writes exactly one
// JSON response line per dispatched command.
type Handler struct {
	store *credstore.Store
	info  DeviceInfo
	out   io.Writer

	buf        []byte
	discarding bool
	state      State
}

// NewHandler creates a provisioning handler that mutates the given
// credential store and writes responses to out.
func NewHandler(store *credstore.Store, info DeviceInfo, out io.Writer) *Handler {
	return &Handler{
		store: store,
		info:  info,
		out:   out,
		buf:   make([]byte, 0, BufferSize),
	}
}

// State returns the current protocol state.
func (h *Handler) State() State {
	return h.state
}

// RestartPending reports whether a restart-triggering command was
// accepted. Once true, the handler must not be fed further input.
func (h *Handler) RestartPending() bool {
	return h.state == StateRestartPending
}

// Feed processes a chunk of incoming serial bytes. Complete lines are
// dispatched as they appear; a partial line stays buffered for the next
// call. Feeding a handler in StateRestartPending is a no-op.
func (h *Handler) Feed(data []byte) {
	for _, c := range data {
		if h.state == StateRestartPending {
			return
		}
		h.processByte(c)
	}
}

// Run drives the handler from a reader until a restart is requested or
// the input ends. This is the embedding loop for the agent's
// provisioning mode; the caller performs the actual restart.
func (h *Handler) Run(r io.Reader) error {
	br := bufio.NewReader(r)
	for !h.RestartPending() {
		c, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return fmt.Errorf("serial read failed: %w", err)
		}
		h.processByte(c)
	}
	return nil
}

// processByte advances the line buffer state machine by one byte.
func (h *Handler) processByte(c byte) {
	// End of line: dispatch whatever is buffered.
	if c == '\n' || c == '\r' {
		if h.discarding {
			// The oversized line has finally ended; resume normally.
			h.discarding = false
			return
		}
		if len(h.buf) > 0 {
			line := h.buf
			h.buf = h.buf[:0]
			h.dispatch(line)
		}
		return
	}

	if h.discarding {
		return
	}

	if len(h.buf) >= BufferSize-1 {
		// Overflow: reject once, then swallow the rest of the line so
		// no command is dispatched from its tail.
		h.sendResponse("error", "command_too_long")
		h.buf = h.buf[:0]
		h.discarding = true
		return
	}

	h.buf = append(h.buf, c)
}

// command is the wire shape of a host-to-device command line. Optional
// fields are pointers so a missing field is distinguishable from an
// empty one.
type command struct {
	Cmd      string  `json:"cmd"`
	SSID     *string `json:"ssid"`
	Password *string `json:"password"`
	URL      *string `json:"url"`
}

// dispatch parses and executes one complete command line, emitting
// exactly one JSON response.
func (h *Handler) dispatch(line []byte) {
	var cmd command
	if err := json.Unmarshal(line, &cmd); err != nil {
		logging.Debug("Rejected malformed provisioning line", zap.Error(err))
		h.sendResponse("error", "invalid_json")
		return
	}

	if cmd.Cmd == "" {
		h.sendResponse("error", "missing_cmd")
		return
	}

	switch cmd.Cmd {
	case "get_info":
		h.sendDeviceInfo()

	case "get_config":
		h.sendConfig()

	case "set_wifi":
		h.setWiFi(cmd, false)

	case "set_wifi_backup":
		h.setWiFi(cmd, true)

	case "set_server":
		h.setServer(cmd)

	case "provision":
		h.provision()

	case "reset":
		h.reset()

	case "reboot":
		logging.LogProvisionCommand("reboot", "ok", "rebooting")
		h.sendResponse("ok", "rebooting")
		h.state = StateRestartPending

	default:
		logging.LogProvisionCommand(cmd.Cmd, "error", "unknown_command")
		h.sendResponse("error", "unknown_command")
	}
}

// setWiFi handles set_wifi and set_wifi_backup. The password is
// optional: open networks have none.
func (h *Handler) setWiFi(cmd command, backup bool) {
	name := "set_wifi"
	okMsg := "wifi_set"
	setSSID := h.store.SetWiFiSSID
	setPassword := h.store.SetWiFiPassword
	if backup {
		name = "set_wifi_backup"
		okMsg = "wifi_backup_set"
		setSSID = h.store.SetWiFiSSIDBackup
		setPassword = h.store.SetWiFiPasswordBackup
	}

	if cmd.SSID == nil {
		logging.LogProvisionCommand(name, "error", "missing_ssid")
		h.sendResponse("error", "missing_ssid")
		return
	}

	if err := setSSID(*cmd.SSID); err != nil {
		h.sendStoreError(name, "ssid", err)
		return
	}
	if cmd.Password != nil {
		if err := setPassword(*cmd.Password); err != nil {
			h.sendStoreError(name, "password", err)
			return
		}
	}

	logging.LogProvisionCommand(name, "ok", okMsg)
	h.sendResponse("ok", okMsg)
}

func (h *Handler) setServer(cmd command) {
	if cmd.URL == nil {
		logging.LogProvisionCommand("set_server", "error", "missing_url")
		h.sendResponse("error", "missing_url")
		return
	}

	if err := h.store.SetServerURL(*cmd.URL); err != nil {
		h.sendStoreError("set_server", "url", err)
		return
	}

	logging.LogProvisionCommand("set_server", "ok", "server_set")
	h.sendResponse("ok", "server_set")
}

// provision validates the minimum required configuration before marking
// the device provisioned. On validation failure nothing is mutated and
// the session continues.
func (h *Handler) provision() {
	if h.store.WiFiSSID() == "" {
		logging.LogProvisionCommand("provision", "error", "wifi_not_configured")
		h.sendResponse("error", "wifi_not_configured")
		return
	}
	if h.store.ServerURL() == "" {
		logging.LogProvisionCommand("provision", "error", "server_not_configured")
		h.sendResponse("error", "server_not_configured")
		return
	}

	if err := h.store.SetProvisioned(true); err != nil {
		h.sendStoreError("provision", "provisioned", err)
		return
	}

	logging.LogProvisionCommand("provision", "ok", "provisioned")
	h.sendResponse("ok", "provisioned")
	h.state = StateRestartPending
}

func (h *Handler) reset() {
	if err := h.store.ClearAll(); err != nil {
		h.sendStoreError("reset", "store", err)
		return
	}

	logging.LogProvisionCommand("reset", "ok", "config_cleared")
	h.sendResponse("ok", "config_cleared")
	h.state = StateRestartPending
}

// sendStoreError maps credential store failures onto protocol errors.
// Over-long values get a field-specific message; anything else reports a
// generic store failure.
func (h *Handler) sendStoreError(cmd, field string, err error) {
	msg := "store_write_failed"
	if errors.Is(err, credstore.ErrValueTooLong) {
		msg = field + "_too_long"
	}
	logging.LogProvisionCommand(cmd, "error", msg)
	h.sendResponse("error", msg)
}

// response is the generic one-line reply shape.
type response struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

func (h *Handler) sendResponse(status, msg string) {
	h.writeJSON(response{Status: status, Msg: msg})
}

// infoResponse is the get_info reply shape.
type infoResponse struct {
	Status      string `json:"status"`
	MAC         string `json:"mac"`
	Type        string `json:"type"`
	Version     string `json:"version"`
	Provisioned bool   `json:"provisioned"`
}

func (h *Handler) sendDeviceInfo() {
	h.writeJSON(infoResponse{
		Status:      "ok",
		MAC:         h.info.MAC,
		Type:        h.info.Type,
		Version:     h.info.Version,
		Provisioned: h.store.IsProvisioned(),
	})
}

// configResponse is the get_config reply shape. Passwords are never
// reported; the host re-sends credentials instead of reading them back.
type configResponse struct {
	Status string                 `json:"status"`
	Config map[string]interface{} `json:"config"`
}

func (h *Handler) sendConfig() {
	h.writeJSON(configResponse{
		Status: "ok",
		Config: map[string]interface{}{
			"provisioned":      h.store.IsProvisioned(),
			"wifi_ssid":        h.store.WiFiSSID(),
			"wifi_ssid_backup": h.store.WiFiSSIDBackup(),
			"server_url":       h.store.ServerURL(),
		},
	})
}

// writeJSON emits one response object followed by a newline.
func (h *Handler) writeJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		// Marshal of these fixed shapes cannot realistically fail;
		// fall back to a hand-built error line if it somehow does.
		fmt.Fprintln(h.out, `{"status":"error","msg":"internal_error"}`)
		return
	}
	h.out.Write(data)
	io.WriteString(h.out, "\n")
}

// WriteBanner prints the human-readable provisioning banner the device
// shows when entering setup mode.
func (h *Handler) WriteBanner() {
	fmt.Fprintln(h.out)
	fmt.Fprintln(h.out, "===========================================")
	fmt.Fprintln(h.out, "  SMD Serial Provisioning Mode")
	fmt.Fprintln(h.out, "===========================================")
	fmt.Fprintf(h.out, "  Device Type: %s\n", h.info.Type)
	fmt.Fprintf(h.out, "  Firmware:    %s\n", h.info.Version)
	fmt.Fprintf(h.out, "  MAC Address: %s\n", h.info.MAC)
	fmt.Fprintln(h.out, "===========================================")
	fmt.Fprintln(h.out, "Awaiting configuration commands...")
	fmt.Fprintln(h.out)
}
