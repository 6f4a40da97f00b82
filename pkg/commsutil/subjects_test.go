package commsutil

import "testing"

func TestBuildTrafficSubject(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		direction string
		topic     string
		want      string
	}{
		{"basic", "bridgekit.traffic", "outbound", "greet", "bridgekit.traffic.outbound.greet"},
		{"dotted topic", "bridgekit.traffic", "inbound", "app.greet", "bridgekit.traffic.inbound.app_greet"},
		{"empty topic", "bridgekit.traffic", "inbound", "", "bridgekit.traffic.inbound._"},
		{"custom base", "tap", "outbound", "error", "tap.outbound.error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildTrafficSubject(tt.base, tt.direction, tt.topic)
			if got != tt.want {
				t.Errorf("BuildTrafficSubject(%q, %q, %q) = %q, want %q", tt.base, tt.direction, tt.topic, got, tt.want)
			}
		})
	}
}

func TestSafeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"greet", "greet"},
		{"a b", "a_b"},
		{"wild*card>", "wild_card_"},
		{"", "_"},
		{"textFromNative", "textFromNative"},
	}

	for _, tt := range tests {
		if got := SafeToken(tt.in); got != tt.want {
			t.Errorf("SafeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
