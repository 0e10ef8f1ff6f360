package credstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/smdworks/smdagent/internal/logging"
)

const (
	appName         = "smd-agent"
	credentialsFile = "credentials.yaml"
)

// Maximum field lengths, matching the NVS layout of the ESP32 firmware.
// Setters reject values beyond these limits; they never truncate.
const (
	MaxSSIDLength     = 32
	MaxPasswordLength = 64
	MaxURLLength      = 256
)

// ErrValueTooLong is returned when a setter receives a value exceeding
// the field's maximum length. The stored value is left unchanged.
var ErrValueTooLong = errors.New("value exceeds maximum length")

// record is the on-disk shape of the credential store. Key names match
// the NVS keys used by the ESP32 firmware so host tooling can read both.
type record struct {
	Provisioned        bool   `yaml:"provisioned"`
	WiFiSSID           string `yaml:"wifi_ssid,omitempty"`
	WiFiPassword       string `yaml:"wifi_pass,omitempty"`
	WiFiSSIDBackup     string `yaml:"wifi_ssid_bk,omitempty"`
	WiFiPasswordBackup string `yaml:"wifi_pass_bk,omitempty"`
	ServerURL          string `yaml:"server_url,omitempty"`
}

// Store is the durable credential store for a single device. It owns the
// device's network identity: WiFi credentials (primary and backup), the
// management server URL, and the provisioned flag.
//
// Every operation follows an open-operate-close discipline: the backing
// file is read, mutated, and atomically rewritten per call. Nothing is
// cached in memory, so a crash between calls leaves the store closed and
// consistent. No transaction spans multiple keys.
type Store struct {
	path string

	// fileMutex serializes writes from this process. Cross-process
	// consistency comes from the atomic rename in save().
	fileMutex sync.Mutex
}

// NewStore creates a credential store backed by the given file path.
// The file does not need to exist; a missing file reads as an
// unprovisioned device.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the OS-appropriate location for the credential
// file. This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/smd-agent or $HOME/.config/smd-agent
//   - macOS: $HOME/.config/smd-agent (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\smd-agent
func DefaultPath() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	default:
		// Linux, macOS and other Unix-like systems: XDG_CONFIG_HOME or $HOME/.config
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return filepath.Join(baseDir, credentialsFile), nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// load reads the current record from disk. A missing, unreadable or
// corrupt file yields the zero record: the device behaves as
// unprovisioned rather than crashing.
func (s *Store) load() record {
	var rec record

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("Credential store unreadable, treating as unprovisioned",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
		return record{}
	}

	if err := yaml.Unmarshal(data, &rec); err != nil {
		logging.Warn("Credential store corrupt, treating as unprovisioned",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return record{}
	}

	return rec
}

// save writes the record to disk atomically (temp file + rename) so a
// crash mid-write never leaves a half-written store behind.
func (s *Store) save(rec record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	header := []byte(`# SMD agent credential store.
# Holds the device's network identity: WiFi credentials, management
# server URL and the provisioned flag. Managed by the provisioning
# protocol; do not hand-edit while the agent is running.

`)
	data = append(header, data...)

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary credential file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save credential file: %w", err)
	}

	return nil
}

// update applies a mutation to the stored record under the write lock.
func (s *Store) update(mutate func(*record)) error {
	s.fileMutex.Lock()
	defer s.fileMutex.Unlock()

	rec := s.load()
	mutate(&rec)
	return s.save(rec)
}

// IsProvisioned reports whether the device has been marked provisioned.
func (s *Store) IsProvisioned() bool {
	return s.load().Provisioned
}

// SetProvisioned sets the provisioned flag. The provisioning handler is
// responsible for validating that SSID and server URL are present before
// setting it to true.
func (s *Store) SetProvisioned(value bool) error {
	if err := s.update(func(r *record) { r.Provisioned = value }); err != nil {
		return err
	}
	logging.Info("Provisioned flag updated", zap.Bool("provisioned", value))
	return nil
}

// WiFiSSID returns the primary WiFi SSID, or "" when unset.
func (s *Store) WiFiSSID() string {
	return s.load().WiFiSSID
}

// SetWiFiSSID stores the primary WiFi SSID.
func (s *Store) SetWiFiSSID(ssid string) error {
	if len(ssid) > MaxSSIDLength {
		logging.Error("SSID too long", zap.Int("length", len(ssid)), zap.Int("max", MaxSSIDLength))
		return fmt.Errorf("ssid: %w", ErrValueTooLong)
	}
	return s.update(func(r *record) { r.WiFiSSID = ssid })
}

// WiFiPassword returns the primary WiFi password, or "" when unset.
func (s *Store) WiFiPassword() string {
	return s.load().WiFiPassword
}

// SetWiFiPassword stores the primary WiFi password.
func (s *Store) SetWiFiPassword(password string) error {
	if len(password) > MaxPasswordLength {
		logging.Error("Password too long", zap.Int("length", len(password)), zap.Int("max", MaxPasswordLength))
		return fmt.Errorf("password: %w", ErrValueTooLong)
	}
	return s.update(func(r *record) { r.WiFiPassword = password })
}

// WiFiSSIDBackup returns the backup WiFi SSID, or "" when unset.
func (s *Store) WiFiSSIDBackup() string {
	return s.load().WiFiSSIDBackup
}

// SetWiFiSSIDBackup stores the backup WiFi SSID.
func (s *Store) SetWiFiSSIDBackup(ssid string) error {
	if len(ssid) > MaxSSIDLength {
		logging.Error("Backup SSID too long", zap.Int("length", len(ssid)), zap.Int("max", MaxSSIDLength))
		return fmt.Errorf("backup ssid: %w", ErrValueTooLong)
	}
	return s.update(func(r *record) { r.WiFiSSIDBackup = ssid })
}

// WiFiPasswordBackup returns the backup WiFi password, or "" when unset.
func (s *Store) WiFiPasswordBackup() string {
	return s.load().WiFiPasswordBackup
}

// SetWiFiPasswordBackup stores the backup WiFi password.
func (s *Store) SetWiFiPasswordBackup(password string) error {
	if len(password) > MaxPasswordLength {
		logging.Error("Backup password too long", zap.Int("length", len(password)), zap.Int("max", MaxPasswordLength))
		return fmt.Errorf("backup password: %w", ErrValueTooLong)
	}
	return s.update(func(r *record) { r.WiFiPasswordBackup = password })
}

// ServerURL returns the management server URL, or "" when unset.
func (s *Store) ServerURL() string {
	return s.load().ServerURL
}

// SetServerURL stores the management server URL.
func (s *Store) SetServerURL(url string) error {
	if len(url) > MaxURLLength {
		logging.Error("Server URL too long", zap.Int("length", len(url)), zap.Int("max", MaxURLLength))
		return fmt.Errorf("server url: %w", ErrValueTooLong)
	}
	return s.update(func(r *record) { r.ServerURL = url })
}

// ClearAll erases every stored key, returning the device to the
// unprovisioned state.
func (s *Store) ClearAll() error {
	s.fileMutex.Lock()
	defer s.fileMutex.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear credential store: %w", err)
	}
	logging.Info("Credential store cleared", zap.String("path", s.path))
	return nil
}

// Summary returns the stored configuration with passwords masked, for
// local status output. Passwords are replaced with "****" when set and
// "" when empty; they are never returned in the clear. The provisioning
// protocol's get_config reply omits password keys entirely.
func (s *Store) Summary() map[string]interface{} {
	rec := s.load()

	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return "****"
	}

	return map[string]interface{}{
		"provisioned":          rec.Provisioned,
		"wifi_ssid":            rec.WiFiSSID,
		"wifi_password":        mask(rec.WiFiPassword),
		"wifi_ssid_backup":     rec.WiFiSSIDBackup,
		"wifi_password_backup": mask(rec.WiFiPasswordBackup),
		"server_url":           rec.ServerURL,
	}
}
