package config

import (
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
site: ferndale-high-st
catalog: tasks.yaml
periods:
  - id: opening
    start: "08:00"
    end: "11:30"
  - id: lunch
    start: "11:30"
    end: "15:00"
`

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if cfg.Site != "ferndale-high-st" {
		t.Errorf("Site = %q", cfg.Site)
	}
	if len(cfg.Periods) != 2 {
		t.Errorf("Periods = %d, want 2", len(cfg.Periods))
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "shiftboard.db" {
		t.Errorf("store defaults = %+v", cfg.Store)
	}
	if len(cfg.Checkpoints) != 2 {
		t.Fatalf("checkpoint defaults = %+v", cfg.Checkpoints)
	}
	if cfg.Checkpoints[0].ID != DayOpenCheckpoint || cfg.Checkpoints[0].At != "08:00" {
		t.Errorf("day-open default = %+v", cfg.Checkpoints[0])
	}
	if cfg.Checkpoints[1].ID != "late-close" || cfg.Checkpoints[1].At != "22:30" {
		t.Errorf("late-close default = %+v", cfg.Checkpoints[1])
	}
	if cfg.Uploads.MaxAttempts != 3 || cfg.Uploads.BaseBackoff != 2*time.Second {
		t.Errorf("upload defaults = %+v", cfg.Uploads)
	}
	if cfg.Uploads.Dir != "blobs" {
		t.Errorf("uploads.dir default = %q", cfg.Uploads.Dir)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("api.port default = %d", cfg.API.Port)
	}
	if cfg.DayOpenMinutes() != 8*60 {
		t.Errorf("DayOpenMinutes() = %d", cfg.DayOpenMinutes())
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	doc := minimalYAML + `
store:
  driver: mysql
  database: shiftboard_site1
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if cfg.Store.Host != "127.0.0.1" || cfg.Store.Port != 3306 {
		t.Errorf("mysql defaults = %+v", cfg.Store)
	}
}

func TestParse_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{"missing site", "catalog: t.yaml\nperiods: [{id: a, start: \"08:00\", end: \"10:00\"}]", "site is required"},
		{"missing catalog", "site: s\nperiods: [{id: a, start: \"08:00\", end: \"10:00\"}]", "catalog is required"},
		{"no periods", "site: s\ncatalog: t.yaml", "at least one period"},
		{"bad driver", minimalYAML + "store: {driver: mongo}", "store.driver"},
		{"mysql without database", minimalYAML + "store: {driver: mysql}", "store.database"},
		{"bad checkpoint time", minimalYAML + "checkpoints: [{id: day-open, at: \"25:99\"}]", "checkpoints[0].at"},
		{"missing day-open", minimalYAML + "checkpoints: [{id: late-close, at: \"22:30\"}]", "day-open"},
		{"duplicate checkpoint", minimalYAML + "checkpoints: [{id: day-open, at: \"08:00\"}, {id: day-open, at: \"09:00\"}]", "duplicate"},
		{"verify without endpoint", minimalYAML + "verify: {enabled: true}", "verify.endpoint"},
		{"slack without channel", minimalYAML + "notify: {slack: {bot_token: xoxb-1}}", "slack.channel"},
		{"discord without channel", minimalYAML + "notify: {discord: {bot_token: d-1}}", "discord.channel_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() accepted invalid config")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("site: [unclosed")); err == nil {
		t.Fatal("Parse() accepted malformed YAML")
	}
}

func TestDayOpenMinutes_CustomTime(t *testing.T) {
	doc := minimalYAML + `
checkpoints:
  - id: day-open
    at: "06:30"
  - id: late-close
    at: "23:00"
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if got := cfg.DayOpenMinutes(); got != 6*60+30 {
		t.Errorf("DayOpenMinutes() = %d, want 390", got)
	}
}
