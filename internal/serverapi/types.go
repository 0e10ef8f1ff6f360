package serverapi

import (
	"encoding/json"
	"strings"
)

// HeartbeatReport is the device health report posted to the server on
// every heartbeat cycle. Battery fields are omitted entirely when the
// device has no battery monitor.
type HeartbeatReport struct {
	MACAddress      string            `json:"mac_address"`
	SignalStrength  int               `json:"signal_strength"`
	FirmwareVersion string            `json:"firmware_version"`
	BatteryMV       *int              `json:"battery_mv,omitempty"`
	BatteryPercent  *int              `json:"battery_percent,omitempty"`
	Metadata        HeartbeatMetadata `json:"metadata"`
}

// HeartbeatMetadata is the nested metadata object of a heartbeat report.
// The server uses config_version here to decide whether to flag the
// device for a refresh in its own bookkeeping.
type HeartbeatMetadata struct {
	IPAddress       string `json:"ip_address"`
	DeviceType      string `json:"device_type"`
	ConfigVersion   int    `json:"config_version"`
	BatteryCharging *bool  `json:"battery_charging,omitempty"`
}

// ContentData is the normalized display content record returned by the
// content endpoint. Empty and placeholder server values ("", "0",
// "null") read as "--" so the display never renders raw placeholders.
type ContentData struct {
	Title    string
	Subtitle string
	Status   string
	Line1    string
	Line2    string
	Line3    string
	Line4    string
}

// contentPayload mirrors the wire shape of the content endpoint. The
// record may arrive at the top level or nested under "data".
type contentPayload struct {
	Data *contentRecord `json:"data"`
	contentRecord
}

type contentRecord struct {
	PrinterName json.RawMessage `json:"printer_name"`
	DeviceName  json.RawMessage `json:"device_name"`
	Status      json.RawMessage `json:"status"`
	ContentType json.RawMessage `json:"content_type"`
	JobID       json.RawMessage `json:"job_id"`
	OrderNumber json.RawMessage `json:"order_number"`
	ItemNumber  json.RawMessage `json:"item_number"`
	BoxID       json.RawMessage `json:"box_id"`
}

// ParseContentData decodes and normalizes a content endpoint response.
func ParseContentData(data []byte) (*ContentData, error) {
	var payload contentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, NewParseError("invalid content response", err)
	}

	rec := payload.contentRecord
	if payload.Data != nil {
		rec = *payload.Data
	}

	content := &ContentData{
		Title:  "Unregistered",
		Status: "UNKNOWN",
		Line1:  "--",
		Line2:  "--",
		Line3:  "--",
		Line4:  "--",
	}

	if name := rawString(rec.PrinterName); name != "" {
		content.Title = name
	} else if name := rawString(rec.DeviceName); name != "" {
		content.Title = name
	}

	if status := rawString(rec.Status); status != "" {
		content.Status = strings.ToUpper(status)
	}

	if subtitle := rawString(rec.ContentType); subtitle != "" {
		content.Subtitle = subtitle
	}

	content.Line1 = normalizeField(rawString(rec.JobID))
	content.Line2 = normalizeField(rawString(rec.OrderNumber))
	content.Line3 = normalizeField(rawString(rec.ItemNumber))
	content.Line4 = normalizeField(rawString(rec.BoxID))

	return content, nil
}

// rawString renders a raw JSON value as a plain string: strings are
// unquoted, numbers and booleans are kept verbatim, null and absent
// values read as "". The server is loose about field types (numeric ids
// arrive as either numbers or strings), so this smooths both over.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}

// normalizeField maps placeholder values to the display's em-dash stand-in.
func normalizeField(v string) string {
	if v == "" || v == "0" || v == "null" {
		return "--"
	}
	return v
}
