// Package battery reads battery state from the kernel power_supply
// interface. Devices without a battery (bench units on USB power)
// report an invalid status and the agent omits battery fields from
// heartbeats.
package battery

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/smdworks/smdagent/internal/logging"
)

// LiPo thresholds in millivolts. Used to derive a percentage when the
// supply exposes voltage but no capacity attribute.
const (
	FullMV  = 4200
	EmptyMV = 3000

	// Readings outside this window are treated as invalid.
	validMinMV = 2500
	validMaxMV = 4500
)

// Status is one battery reading.
type Status struct {
	VoltageMV int
	Percent   int
	Charging  bool
	Low       bool
	Critical  bool
	Valid     bool
}

// Monitor locates a battery supply under a power_supply sysfs root and
// reads its state on demand.
type Monitor struct {
	root string
}

// NewMonitor returns a monitor over the default sysfs location.
func NewMonitor() *Monitor {
	return &Monitor{root: "/sys/class/power_supply"}
}

// NewMonitorAt returns a monitor over a specific power_supply root.
func NewMonitorAt(root string) *Monitor {
	return &Monitor{root: root}
}

// Read takes one battery reading. When no battery supply exists, or the
// voltage is outside the plausible LiPo window, the returned status has
// Valid false and Percent -1.
func (m *Monitor) Read() Status {
	invalid := Status{Percent: -1}

	dir := m.findBattery()
	if dir == "" {
		return invalid
	}

	voltage, ok := m.readVoltageMV(dir)
	if !ok || voltage < validMinMV || voltage > validMaxMV {
		logging.Debug("Battery voltage reading invalid",
			zap.String("supply", filepath.Base(dir)),
			zap.Int("voltage_mv", voltage))
		return invalid
	}

	percent, ok := readIntAttr(dir, "capacity")
	if !ok {
		percent = PercentFromVoltage(voltage)
	}

	status := Status{
		VoltageMV: voltage,
		Percent:   percent,
		Charging:  m.readCharging(dir),
		Low:       percent <= 20,
		Critical:  percent <= 10,
		Valid:     true,
	}
	return status
}

// PercentFromVoltage maps a LiPo cell voltage onto 0..100 by linear
// interpolation between the empty and full thresholds.
func PercentFromVoltage(voltageMV int) int {
	if voltageMV >= FullMV {
		return 100
	}
	if voltageMV <= EmptyMV {
		return 0
	}
	return (voltageMV - EmptyMV) * 100 / (FullMV - EmptyMV)
}

// findBattery returns the first supply directory whose type is Battery.
func (m *Monitor) findBattery() string {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		dir := filepath.Join(m.root, entry.Name())
		kind, err := os.ReadFile(filepath.Join(dir, "type"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(kind)) == "Battery" {
			return dir
		}
	}
	return ""
}

// readVoltageMV reads voltage_now, which sysfs reports in microvolts.
func (m *Monitor) readVoltageMV(dir string) (int, bool) {
	uv, ok := readIntAttr(dir, "voltage_now")
	if !ok {
		return 0, false
	}
	return uv / 1000, true
}

// readCharging maps the supply status attribute. "Full" counts as
// charging: the device is on external power.
func (m *Monitor) readCharging(dir string) bool {
	raw, err := os.ReadFile(filepath.Join(dir, "status"))
	if err != nil {
		return false
	}
	switch strings.TrimSpace(string(raw)) {
	case "Charging", "Full":
		return true
	}
	return false
}

func readIntAttr(dir, name string) (int, bool) {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, false
	}
	return v, true
}
