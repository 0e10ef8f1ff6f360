package deviceconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the config endpoint response:
//
//	{"success": true, "config": {...}, "config_version": 7}
//
// All config fields are optional; config_version sits at the top level,
// outside the config object.
type Envelope struct {
	Success       bool    `json:"success"`
	Config        *Update `json:"config"`
	ConfigVersion *int    `json:"config_version"`
}

// Update is a sparse configuration update. Each field is optional; only
// fields present in the server response are applied, everything else
// keeps its prior value. This is a merge, not a replace.
type Update struct {
	HeartbeatIntervalSeconds  *int  `json:"heartbeat_interval_seconds"`
	WiFiTimeoutSeconds        *int  `json:"wifi_timeout_seconds"`
	DisplayRefreshOnHeartbeat *bool `json:"display_refresh_on_heartbeat"`

	DisplayRotation  *int  `json:"display_rotation"`
	ShowLogo         *bool `json:"show_logo"`
	ScreenBrightness *int  `json:"screen_brightness"`

	DeepSleepEnabled *bool `json:"deep_sleep_enabled"`
	WakeOnButton     *bool `json:"wake_on_button"`

	// template_id may be sent as an explicit null, meaning "no template".
	TemplateID NullableInt `json:"template_id"`

	ContentRefreshSeconds *int `json:"content_refresh_seconds"`
}

// NullableInt distinguishes an absent field from an explicit JSON null.
// A null reads as present with value 0.
type NullableInt struct {
	Present bool
	Value   int
}

// UnmarshalJSON implements json.Unmarshaler. encoding/json invokes it
// for explicit nulls too, which is exactly the distinction needed here.
func (n *NullableInt) UnmarshalJSON(data []byte) error {
	n.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = 0
		return nil
	}
	if err := json.Unmarshal(data, &n.Value); err != nil {
		return fmt.Errorf("template_id: %w", err)
	}
	return nil
}

// ParseEnvelope decodes a config endpoint response body.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse config response: %w", err)
	}
	return &env, nil
}

// apply merges the present fields of the update into the config.
func (c *Config) apply(u *Update) {
	if u.HeartbeatIntervalSeconds != nil {
		c.HeartbeatIntervalSeconds = *u.HeartbeatIntervalSeconds
	}
	if u.WiFiTimeoutSeconds != nil {
		c.WiFiTimeoutSeconds = *u.WiFiTimeoutSeconds
	}
	if u.DisplayRefreshOnHeartbeat != nil {
		c.DisplayRefreshOnHeartbeat = *u.DisplayRefreshOnHeartbeat
	}
	if u.DisplayRotation != nil {
		c.DisplayRotation = *u.DisplayRotation
	}
	if u.ShowLogo != nil {
		c.ShowLogo = *u.ShowLogo
	}
	if u.ScreenBrightness != nil {
		c.ScreenBrightness = *u.ScreenBrightness
	}
	if u.DeepSleepEnabled != nil {
		c.DeepSleepEnabled = *u.DeepSleepEnabled
	}
	if u.WakeOnButton != nil {
		c.WakeOnButton = *u.WakeOnButton
	}
	if u.TemplateID.Present {
		c.TemplateID = u.TemplateID.Value
	}
	if u.ContentRefreshSeconds != nil {
		c.ContentRefreshSeconds = *u.ContentRefreshSeconds
	}
}
