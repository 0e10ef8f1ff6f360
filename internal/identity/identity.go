package identity

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/denisbrodbeck/machineid"
)

// DeviceTypeEnvVar overrides the reported device type. The ESP32 builds
// bake the display variant into the firmware image; on a general-purpose
// host the variant comes from the environment instead.
const DeviceTypeEnvVar = "SMD_DEVICE_TYPE"

// DefaultDeviceType is reported when no override is configured.
const DefaultDeviceType = "SMD_Generic"

// machineIDAppID salts the hashed machine ID so the fallback address is
// stable per device but not correlatable with other applications.
const machineIDAppID = "smdworks.smdagent"

// DeviceType returns the device type string reported over the
// provisioning protocol and in heartbeat metadata.
func DeviceType() string {
	if t := strings.TrimSpace(os.Getenv(DeviceTypeEnvVar)); t != "" {
		return t
	}
	return DefaultDeviceType
}

// MACAddress returns the hardware address that identifies this device to
// the management server, formatted as uppercase colon-separated hex
// (XX:XX:XX:XX:XX:XX).
//
// The first up, non-loopback interface with a 48-bit hardware address is
// used. When no usable interface exists (containers, exotic hardware),
// a stable pseudo-MAC is derived from the OS machine ID so the device
// still has a consistent identity across restarts.
func MACAddress() (string, error) {
	if mac := firstHardwareAddress(); mac != "" {
		return mac, nil
	}

	pseudo, err := pseudoMAC()
	if err != nil {
		return "", fmt.Errorf("no hardware address and no machine id: %w", err)
	}
	return pseudo, nil
}

// firstHardwareAddress scans the system interfaces for a usable MAC.
// Returns "" when none qualifies.
func firstHardwareAddress() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) != 6 {
			continue
		}
		return FormatMAC(iface.HardwareAddr)
	}

	// Second pass: accept interfaces that are down but have a MAC.
	// A freshly booted device may not have brought WiFi up yet.
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) != 6 {
			continue
		}
		return FormatMAC(iface.HardwareAddr)
	}

	return ""
}

// pseudoMAC derives a stable locally-administered MAC from the hashed
// machine ID.
func pseudoMAC() (string, error) {
	id, err := machineid.ProtectedID(machineIDAppID)
	if err != nil {
		return "", err
	}

	// ProtectedID returns a hex-encoded HMAC; take the first six bytes.
	raw := make([]byte, 0, 6)
	for i := 0; i+1 < len(id) && len(raw) < 6; i += 2 {
		var b byte
		if _, err := fmt.Sscanf(id[i:i+2], "%02x", &b); err != nil {
			return "", fmt.Errorf("unexpected machine id format: %w", err)
		}
		raw = append(raw, b)
	}
	if len(raw) < 6 {
		return "", fmt.Errorf("machine id too short: %d chars", len(id))
	}

	// Set the locally-administered bit, clear multicast.
	raw[0] = (raw[0] | 0x02) &^ 0x01

	return FormatMAC(raw), nil
}

// FormatMAC renders a hardware address as uppercase colon-separated hex,
// the form the management server keys devices by.
func FormatMAC(addr net.HardwareAddr) string {
	parts := make([]string, len(addr))
	for i, b := range addr {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}
