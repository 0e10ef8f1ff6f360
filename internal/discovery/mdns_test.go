package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()

	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantName string
		wantIP   string
		wantPort int
	}{
		{
			name: "server with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "smd-server"},
				HostName:      "smdserver.local.",
				Port:          3001,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.10")},
				Text:          []string{"api=/api", "version=1.4.0"},
			},
			wantName: "smd-server",
			wantIP:   "192.168.1.10",
			wantPort: 3001,
		},
		{
			name: "no port specified defaults to API port",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "smd-server"},
				HostName:      "smdserver.local.",
				Port:          0,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantName: "smd-server",
			wantIP:   "10.0.0.5",
			wantPort: DefaultPort,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "smd-server"},
				HostName:      "smdserver.local.",
				Port:          3001,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantName: "smd-server",
			wantIP:   "fe80::1",
			wantPort: 3001,
		},
		{
			name: "prefers IPv4 over IPv6",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "smd-server"},
				HostName:      "smdserver.local.",
				Port:          3001,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::2")},
			},
			wantName: "smd-server",
			wantIP:   "192.168.1.50",
			wantPort: 3001,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "smd-server"},
				HostName:      "smdserver.local.",
				Port:          3001,
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := scanner.parseServiceEntry(tt.entry)
			if tt.wantNil {
				if server != nil {
					t.Fatalf("parseServiceEntry() = %v, want nil", server)
				}
				return
			}
			if server == nil {
				t.Fatal("parseServiceEntry() = nil, want server")
			}
			if server.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", server.Name, tt.wantName)
			}
			if server.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", server.IP, tt.wantIP)
			}
			if server.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", server.Port, tt.wantPort)
			}
		})
	}
}

func TestParseServiceEntryMetadata(t *testing.T) {
	scanner := NewScanner()
	server := scanner.parseServiceEntry(&zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "smd-server"},
		HostName:      "smdserver.local.",
		Port:          3001,
		AddrIPv4:      []net.IP{net.ParseIP("192.168.1.10")},
		Text:          []string{"api=/api", "secure"},
	})
	if server == nil {
		t.Fatal("parseServiceEntry() = nil")
	}
	if got := server.GetMetadata("api"); got != "/api" {
		t.Errorf("GetMetadata(api) = %q, want /api", got)
	}
	if got, ok := server.Metadata["secure"]; !ok || got != "" {
		t.Errorf("bare TXT key should map to empty value, got %q ok=%v", got, ok)
	}
	if got := server.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q, want empty", got)
	}
}

func TestServerBaseURL(t *testing.T) {
	server := &Server{IP: "192.168.1.10", Port: 3001}
	if got := server.BaseURL(); got != "http://192.168.1.10:3001" {
		t.Errorf("BaseURL() = %q", got)
	}
}
