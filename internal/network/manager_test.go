package network

import "testing"

func TestHasConnectedWiFi(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want bool
	}{
		{
			name: "wifi connected",
			out:  "lo:loopback:unmanaged\nwlan0:wifi:connected\neth0:ethernet:unavailable",
			want: true,
		},
		{
			name: "wifi connecting still counts",
			out:  "wlan0:wifi:connected (site only)",
			want: true,
		},
		{
			name: "wifi disconnected",
			out:  "wlan0:wifi:disconnected",
			want: false,
		},
		{
			name: "ethernet only",
			out:  "eth0:ethernet:connected",
			want: false,
		},
		{
			name: "empty",
			out:  "",
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasConnectedWiFi(tt.out); got != tt.want {
				t.Errorf("hasConnectedWiFi() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInUseSignal(t *testing.T) {
	out := " \tNeighborNet\t91\n*\tHomeNet\t62\n \tGuest\t30"
	percent, ok := inUseSignal(out)
	if !ok {
		t.Fatal("expected an in-use network")
	}
	if percent != 62 {
		t.Errorf("percent = %d, want 62", percent)
	}

	if _, ok := inUseSignal(" \tNeighborNet\t91"); ok {
		t.Error("no in-use row should yield no signal")
	}
}

func TestPercentToRSSI(t *testing.T) {
	tests := []struct {
		percent int
		want    int
	}{
		{0, -100},
		{-5, -100},
		{100, -50},
		{120, -50},
		{62, -69},
		{50, -75},
	}
	for _, tt := range tests {
		if got := PercentToRSSI(tt.percent); got != tt.want {
			t.Errorf("PercentToRSSI(%d) = %d, want %d", tt.percent, got, tt.want)
		}
	}
}
