package main

import (
	"strings"
	"testing"
	"time"

	"github.com/morezero/bridgekit/internal/config"
)

const mainTestPrefix = "cmd/bridgekit:main_test"

func TestUsage_NonEmpty(t *testing.T) {
	if len(usage) == 0 {
		t.Fatalf("%s - usage string is empty", mainTestPrefix)
	}
}

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "remote", "demo", "migrate", "ensure-db", "clear", "DATABASE_URL", "COMMS_URL"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestWithDatabase(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		dbName string
		want   string
	}{
		{
			name: "keep database",
			url:  "postgres://u:p@localhost:5432/bridgekit?sslmode=disable",
			want: "postgres://u:p@localhost:5432/bridgekit?sslmode=disable",
		},
		{
			name:   "replace database",
			url:    "postgres://u:p@localhost:5432/bridgekit?sslmode=disable",
			dbName: "bridgekit_test",
			want:   "postgres://u:p@localhost:5432/bridgekit_test?sslmode=disable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := withDatabase(tt.url, tt.dbName)
			if err != nil {
				t.Fatalf("%s - unexpected error: %v", mainTestPrefix, err)
			}
			if got != tt.want {
				t.Errorf("%s - withDatabase = %q, want %q", mainTestPrefix, got, tt.want)
			}
		})
	}
}

func TestWithDatabase_InvalidURL(t *testing.T) {
	if _, err := withDatabase("://bad", "x"); err == nil {
		t.Errorf("%s - expected error", mainTestPrefix)
	}
}

func TestDemoOptions(t *testing.T) {
	cfg := &config.Config{DemoScript: "/tmp/page.lua", EventName: "ev", ErrorTopic: "errs", EvalTimeout: 3 * time.Second}
	opts := demoOptions(cfg)
	if opts.ScriptPath != "/tmp/page.lua" || opts.EventName != "ev" || opts.ErrorTopic != "errs" || opts.Timeout != 3*time.Second {
		t.Errorf("%s - demoOptions = %+v", mainTestPrefix, opts)
	}
}
