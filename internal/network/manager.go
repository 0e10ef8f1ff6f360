// Package network manages the device's WiFi connection through
// NetworkManager. The agent only needs join, status and signal; address
// configuration stays with the host system.
package network

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smdworks/smdagent/internal/logging"
)

// Manager is the WiFi surface the agent depends on. The nmcli
// implementation backs it on Linux; tests substitute fakes.
type Manager interface {
	// Connected reports whether a WiFi link is up.
	Connected() bool

	// Connect joins the given network, waiting at most timeout.
	// An empty password joins an open network.
	Connect(ssid, password string, timeout time.Duration) error

	// SignalStrength returns the current RSSI in dBm, or 0 when
	// unknown.
	SignalStrength() int

	// IPAddress returns the device's IPv4 address, or "" when
	// unknown.
	IPAddress() string
}

// NmcliManager drives WiFi through the nmcli command line tool.
type NmcliManager struct{}

// NewManager returns the nmcli-backed manager.
func NewManager() *NmcliManager {
	return &NmcliManager{}
}

func (m *NmcliManager) Connected() bool {
	out, err := m.runCmd(6*time.Second, "nmcli", "-t", "-f", "DEVICE,TYPE,STATE", "dev", "status")
	if err != nil {
		logging.Debug("nmcli status failed", zap.Error(err))
		return false
	}
	return hasConnectedWiFi(out)
}

func (m *NmcliManager) Connect(ssid, password string, timeout time.Duration) error {
	logging.Info("Connecting to WiFi", zap.String("ssid", ssid))

	args := []string{"dev", "wifi", "connect", ssid}
	if strings.TrimSpace(password) != "" {
		args = append(args, "password", password)
	}
	if _, err := m.runCmd(timeout, "nmcli", args...); err != nil {
		return fmt.Errorf("wifi connect to %q failed: %w", ssid, err)
	}
	return nil
}

func (m *NmcliManager) SignalStrength() int {
	out, err := m.runCmd(10*time.Second, "nmcli",
		"-t", "--separator", "\t",
		"-f", "IN-USE,SIGNAL",
		"dev", "wifi", "list")
	if err != nil {
		logging.Debug("nmcli wifi list failed", zap.Error(err))
		return 0
	}
	percent, ok := inUseSignal(out)
	if !ok {
		return 0
	}
	return PercentToRSSI(percent)
}

func (m *NmcliManager) IPAddress() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				return ipnet.IP.String()
			}
		}
	}
	return ""
}

func (m *NmcliManager) runCmd(timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	s := strings.TrimSpace(string(out))
	if ctx.Err() == context.DeadlineExceeded {
		return s, fmt.Errorf("command timed out: %s %v", name, args)
	}
	if err != nil {
		if s != "" {
			return s, fmt.Errorf("command failed: %s %v: %w: %s", name, args, err, s)
		}
		return s, fmt.Errorf("command failed: %s %v: %w", name, args, err)
	}
	return s, nil
}

// hasConnectedWiFi parses `nmcli -t -f DEVICE,TYPE,STATE dev status`.
func hasConnectedWiFi(out string) bool {
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(strings.TrimSpace(line), ":")
		if len(parts) < 3 {
			continue
		}
		if parts[1] == "wifi" && strings.HasPrefix(parts[2], "connected") {
			return true
		}
	}
	return false
}

// inUseSignal parses `nmcli -t --separator '\t' -f IN-USE,SIGNAL dev
// wifi list` and returns the signal percentage of the in-use network.
func inUseSignal(out string) (int, bool) {
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(strings.TrimSpace(line), "\t")
		if len(parts) < 2 || strings.TrimSpace(parts[0]) != "*" {
			continue
		}
		if v, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			return v, true
		}
	}
	return 0, false
}

// PercentToRSSI maps NetworkManager's 0..100 signal quality onto an
// approximate RSSI in dBm, the unit heartbeats report.
func PercentToRSSI(percent int) int {
	if percent <= 0 {
		return -100
	}
	if percent >= 100 {
		return -50
	}
	return percent/2 - 100
}

var _ Manager = (*NmcliManager)(nil)
