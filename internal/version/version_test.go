package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info("yetty-server")

	if !strings.HasPrefix(info, "yetty-server ") {
		t.Errorf("Info() should start with the app name, got %q", info)
	}
	for _, part := range []string{Version, Commit, Date, runtime.Version(), "built on"} {
		if !strings.Contains(info, part) {
			t.Errorf("Info() should contain %q, got %q", part, info)
		}
	}
}

func TestShort(t *testing.T) {
	if Short() != Version {
		t.Errorf("Short() = %q, want %q", Short(), Version)
	}
}

func TestDefaultValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"Version", Version, "dev"},
		{"Commit", Commit, "unknown"},
		{"Date", Date, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.value, tt.want)
			}
		})
	}
}
