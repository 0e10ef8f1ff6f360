package deviceconfig

import (
	"go.uber.org/zap"

	"github.com/smdworks/smdagent/internal/logging"
)

// Config is the server-tunable device configuration. It controls device
// behavior without reflashing: check-in cadence, display presentation,
// power management and content selection.
//
// Every field has a compiled-in default so a partial or failed server
// response never leaves a field unset. ConfigVersion is the one field
// that is authoritative only from the server; the device compares it but
// never increments it locally.
type Config struct {
	// Timing & behavior
	HeartbeatIntervalSeconds  int  // Time between server check-ins
	WiFiTimeoutSeconds        int  // WiFi connection timeout
	DisplayRefreshOnHeartbeat bool // Refresh display on each heartbeat

	// Display
	DisplayRotation  int  // Screen rotation 0-3
	ShowLogo         bool // Show logo on startup screen
	ScreenBrightness int  // Display contrast/brightness if supported

	// Power management
	DeepSleepEnabled bool // Deep sleep between heartbeats
	WakeOnButton     bool // Allow button to wake from sleep

	// Content
	TemplateID            int // Template to render on display (0 = none)
	ContentRefreshSeconds int // How often to fetch new content

	// Config versioning (for change detection)
	ConfigVersion int // Server-tracked version number
}

// Defaults returns the compiled-in default configuration.
func Defaults() Config {
	return Config{
		HeartbeatIntervalSeconds:  60,
		WiFiTimeoutSeconds:        30,
		DisplayRefreshOnHeartbeat: false,

		DisplayRotation:  1,
		ShowLogo:         true,
		ScreenBrightness: 100,

		DeepSleepEnabled: false,
		WakeOnButton:     true,

		TemplateID:            0,
		ContentRefreshSeconds: 300,

		ConfigVersion: 1,
	}
}

// Log writes the current configuration at debug level.
func (c *Config) Log() {
	logging.Debug("Current device configuration",
		zap.Int("heartbeat_interval_seconds", c.HeartbeatIntervalSeconds),
		zap.Int("wifi_timeout_seconds", c.WiFiTimeoutSeconds),
		zap.Bool("display_refresh_on_heartbeat", c.DisplayRefreshOnHeartbeat),
		zap.Int("display_rotation", c.DisplayRotation),
		zap.Bool("show_logo", c.ShowLogo),
		zap.Int("screen_brightness", c.ScreenBrightness),
		zap.Bool("deep_sleep_enabled", c.DeepSleepEnabled),
		zap.Bool("wake_on_button", c.WakeOnButton),
		zap.Int("template_id", c.TemplateID),
		zap.Int("content_refresh_seconds", c.ContentRefreshSeconds),
		zap.Int("config_version", c.ConfigVersion),
	)
}
