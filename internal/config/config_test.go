package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WindowDays != 7 {
		t.Errorf("WindowDays = %d, want 7", cfg.WindowDays)
	}
	if cfg.FetchTimeout != 20*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout)
	}
	if cfg.Schedule != "0 0 12 * * 1" {
		t.Errorf("Schedule = %q", cfg.Schedule)
	}
	if cfg.ReportFilename != "feed.csv" {
		t.Errorf("ReportFilename = %q", cfg.ReportFilename)
	}
	if cfg.FallbackUserAgent != "Mozilla/5.0" {
		t.Errorf("FallbackUserAgent = %q", cfg.FallbackUserAgent)
	}
	if len(cfg.Zones) != 0 {
		t.Errorf("expected no extra zones, got %v", cfg.Zones)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("WINDOW_DAYS", "30")
	t.Setenv("FEEDS_FILE", "/tmp/feeds.yaml")
	t.Setenv("FETCH_TIMEOUT_SECONDS", "5")
	t.Setenv("TIMEZONE_ABBREVIATIONS", "IST=+0530,AEST=+1000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WindowDays != 30 || cfg.FeedsFile != "/tmp/feeds.yaml" || cfg.FetchTimeout != 5*time.Second {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Zones["IST"] != "+0530" || cfg.Zones["AEST"] != "+1000" {
		t.Fatalf("zones not parsed: %v", cfg.Zones)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"WINDOW_DAYS":            "-1",
		"FETCH_TIMEOUT_SECONDS":  "0",
		"STORAGE_TTL_SECONDS":    "0",
		"TIMEZONE_ABBREVIATIONS": "IST=0530",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
		})
	}
}

func TestLoadWithFlagsOverridesEnvironment(t *testing.T) {
	t.Setenv("WINDOW_DAYS", "30")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("window-days", 7, "")
	fs.String("feeds", "", "")
	if err := fs.Parse([]string{"--window-days=1", "--feeds=./feeds.txt"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadWithFlags(fs)
	if err != nil {
		t.Fatalf("LoadWithFlags: %v", err)
	}
	if cfg.WindowDays != 1 || cfg.FeedsFile != "./feeds.txt" {
		t.Fatalf("flags not applied: window=%d feeds=%q", cfg.WindowDays, cfg.FeedsFile)
	}
}

func TestLoadWithFlagsKeepsDefaultsForUnsetFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("window-days", 0, "")
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := LoadWithFlags(fs)
	if err != nil {
		t.Fatalf("LoadWithFlags: %v", err)
	}
	if cfg.WindowDays != 7 {
		t.Fatalf("unset flag should not override default, got %d", cfg.WindowDays)
	}
}
