package deviceconfig

import (
	"go.uber.org/zap"

	"github.com/smdworks/smdagent/internal/logging"
)

// Fetcher retrieves the raw config envelope for a device from the
// management server. Implemented by serverapi.Client; heartbeat tests
// substitute fakes.
type Fetcher interface {
	FetchDeviceConfig(mac string) (*Envelope, error)
}

// Manager owns the in-memory operational configuration and its version
// tag. It knows how to pull a partial update from the server, merge it,
// and decide whether a refresh is needed when the heartbeat reports a
// different server-side version.
//
// A failed fetch is never retried here; retry cadence belongs to
// whoever drives the heartbeat loop.
type Manager struct {
	current Config
	fetcher Fetcher
	loaded  bool
}

// NewManager creates a configuration manager with compiled-in defaults.
func NewManager(fetcher Fetcher) *Manager {
	return &Manager{
		current: Defaults(),
		fetcher: fetcher,
	}
}

// Init resets the in-memory configuration to its compiled-in defaults.
// It does not touch the network.
func (m *Manager) Init() {
	m.current = Defaults()
	m.loaded = false
	logging.Info("Device configuration initialized with defaults")
}

// FetchConfig pulls the configuration for the given device identity from
// the server and merges any present fields into the current
// configuration. Returns false, with the configuration left unchanged,
// on transport failure, parse failure, success=false, or a missing
// config object.
func (m *Manager) FetchConfig(mac string) bool {
	env, err := m.fetcher.FetchDeviceConfig(mac)
	if err != nil {
		logging.Warn("Config fetch failed", zap.String("mac", mac), zap.Error(err))
		return false
	}

	if !env.Success {
		logging.Warn("Config fetch returned success=false", zap.String("mac", mac))
		return false
	}

	if env.Config == nil {
		logging.Warn("Config response missing config object", zap.String("mac", mac))
		return false
	}

	m.current.apply(env.Config)
	if env.ConfigVersion != nil {
		m.current.ConfigVersion = *env.ConfigVersion
	}
	m.loaded = true

	logging.Info("Device configuration loaded",
		zap.String("mac", mac),
		zap.Int("config_version", m.current.ConfigVersion),
	)
	return true
}

// NeedsRefresh reports whether the server's config version differs from
// the local one. This is an equality check, not an ordering check: the
// version is an opaque tag, so a server-side rollback to a numerically
// lower version still triggers a refresh.
func (m *Manager) NeedsRefresh(serverVersion int) bool {
	return serverVersion != m.current.ConfigVersion
}

// ConfigVersion returns the current config version tag.
func (m *Manager) ConfigVersion() int {
	return m.current.ConfigVersion
}

// Config returns a mutable reference to the current configuration.
// Mutable access is intentional: a caller holding a version obtained
// elsewhere can apply it without a second round trip.
func (m *Manager) Config() *Config {
	return &m.current
}

// Loaded reports whether a server fetch has succeeded since Init.
func (m *Manager) Loaded() bool {
	return m.loaded
}
