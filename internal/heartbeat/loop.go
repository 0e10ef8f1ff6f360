// Package heartbeat runs the device's periodic server sync cycle:
// reconnect WiFi if needed, report health, follow the server's config
// version tag, and refresh the display when configuration or policy
// asks for it.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smdworks/smdagent/internal/battery"
	"github.com/smdworks/smdagent/internal/credstore"
	"github.com/smdworks/smdagent/internal/deviceconfig"
	"github.com/smdworks/smdagent/internal/display"
	"github.com/smdworks/smdagent/internal/logging"
	"github.com/smdworks/smdagent/internal/network"
	"github.com/smdworks/smdagent/internal/serverapi"
)

// API is the slice of the server client the loop talks to. The config
// fetch goes through the deviceconfig manager, not through here.
type API interface {
	SendHeartbeat(report *serverapi.HeartbeatReport) (int, error)
	FetchContent(mac string) (*serverapi.ContentData, error)
}

// BatteryReader samples battery state for heartbeat reports.
type BatteryReader interface {
	Read() battery.Status
}

// Loop is the heartbeat/sync loop. Single-threaded: every call it
// makes blocks, and failures wait for the next scheduled cycle rather
// than retrying.
type Loop struct {
	store    *credstore.Store
	config   *deviceconfig.Manager
	api      API
	network  network.Manager
	battery  BatteryReader
	renderer display.Renderer
	id       display.Identity
}

// New assembles a heartbeat loop from its collaborators.
func New(store *credstore.Store, config *deviceconfig.Manager, api API,
	net network.Manager, bat BatteryReader, renderer display.Renderer,
	id display.Identity) *Loop {
	return &Loop{
		store:    store,
		config:   config,
		api:      api,
		network:  net,
		battery:  bat,
		renderer: renderer,
		id:       id,
	}
}

// Run executes cycles until the context is cancelled. The sleep
// between cycles re-reads the current config, so a server-pushed
// interval change takes effect on the next cycle.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.cycle()

		interval := time.Duration(l.config.Config().HeartbeatIntervalSeconds) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// cycle is one heartbeat iteration. A render performed for any reason
// suppresses the policy-driven refresh later in the same cycle.
func (l *Loop) cycle() {
	rendered := false

	if !l.network.Connected() {
		if !l.reconnect() {
			logging.Warn("WiFi down and reconnect failed, skipping cycle")
			return
		}
		// Fresh connection: the panel may be stale.
		if l.RefreshContent() == nil {
			rendered = true
		}
	}

	// A failed heartbeat leaves the server version unknown, which
	// skips the version check below; the rest of the cycle still runs.
	serverVersion, err := l.api.SendHeartbeat(l.buildReport())
	logging.LogHeartbeat(l.id.MAC, serverVersion, l.config.ConfigVersion())
	if err != nil {
		logging.Warn("Heartbeat failed", zap.Error(err))
		serverVersion = serverapi.UnknownConfigVersion
	}

	if serverVersion != serverapi.UnknownConfigVersion && l.config.NeedsRefresh(serverVersion) {
		oldVersion := l.config.ConfigVersion()
		if l.config.FetchConfig(l.id.MAC) {
			logging.LogConfigRefresh(oldVersion, l.config.ConfigVersion(), true)
			if l.RefreshContent() == nil {
				rendered = true
			}
		} else {
			logging.LogConfigRefresh(oldVersion, l.config.ConfigVersion(), false)
		}
	}

	if !rendered && l.config.Config().DisplayRefreshOnHeartbeat {
		l.RefreshContent()
	}
}

// reconnect tries the primary network, then the backup. The timeout
// per attempt comes from the current config.
func (l *Loop) reconnect() bool {
	timeout := time.Duration(l.config.Config().WiFiTimeoutSeconds) * time.Second

	ssid := l.store.WiFiSSID()
	if ssid == "" {
		return false
	}
	err := l.network.Connect(ssid, l.store.WiFiPassword(), timeout)
	if err == nil {
		return true
	}
	logging.Warn("Primary WiFi connect failed", zap.String("ssid", ssid), zap.Error(err))

	backup := l.store.WiFiSSIDBackup()
	if backup == "" {
		return false
	}
	if err := l.network.Connect(backup, l.store.WiFiPasswordBackup(), timeout); err != nil {
		logging.Warn("Backup WiFi connect failed", zap.String("ssid", backup), zap.Error(err))
		return false
	}
	return true
}

// buildReport assembles the heartbeat body. Battery fields are only
// included when the reading is valid; bench units without a battery
// omit them entirely.
func (l *Loop) buildReport() *serverapi.HeartbeatReport {
	report := &serverapi.HeartbeatReport{
		MACAddress:      l.id.MAC,
		SignalStrength:  l.network.SignalStrength(),
		FirmwareVersion: l.id.Version,
		Metadata: serverapi.HeartbeatMetadata{
			IPAddress:     l.network.IPAddress(),
			DeviceType:    l.id.DeviceType,
			ConfigVersion: l.config.ConfigVersion(),
		},
	}

	if status := l.battery.Read(); status.Valid {
		mv := status.VoltageMV
		pct := status.Percent
		charging := status.Charging
		report.BatteryMV = &mv
		report.BatteryPercent = &pct
		report.Metadata.BatteryCharging = &charging
	}

	return report
}

// RefreshContent fetches the device's content record and redraws the
// panel. A device the server has not assigned yet gets the waiting
// screen instead.
func (l *Loop) RefreshContent() error {
	content, err := l.api.FetchContent(l.id.MAC)
	if errors.Is(err, serverapi.ErrNotAssigned) {
		return l.renderer.RenderWaiting(l.id)
	}
	if err != nil {
		logging.Warn("Content fetch failed", zap.Error(err))
		return fmt.Errorf("content fetch failed: %w", err)
	}

	cfg := l.config.Config()
	return l.renderer.RenderContent(content, display.Settings{
		Rotation:   cfg.DisplayRotation,
		ShowLogo:   cfg.ShowLogo,
		Brightness: cfg.ScreenBrightness,
	})
}
