package discovery

import (
	"fmt"
	"time"
)

// Server represents a management server discovered on the local
// network.
type Server struct {
	// Name is the advertised service instance name (e.g., "smd-server")
	Name string

	// Hostname is the mDNS hostname (e.g., "smdserver.local.")
	Hostname string

	// IP is the server address, IPv4 preferred
	IP string

	// Port is the HTTP API port
	Port int

	// Metadata contains additional mDNS TXT record data
	// Common fields: "api=/api", "version=1.4.0"
	Metadata map[string]string

	// DiscoveredAt is when the server was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable representation of the server.
func (s *Server) String() string {
	return fmt.Sprintf("Management server %s (%s) at %s:%d", s.Name, s.Hostname, s.IP, s.Port)
}

// BaseURL returns the server URL in the form the provisioning
// set_server command expects.
func (s *Server) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.IP, s.Port)
}

// GetMetadata retrieves a TXT metadata value, or "" if not present.
func (s *Server) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
