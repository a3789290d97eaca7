package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ivanzxc/go-realtime-vitals/internal/analysis"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("BATCH_SIZE", "30")
	t.Setenv("SHUTDOWN_GRACE", "2s")
	t.Setenv("HTTP_ADDR", "")

	cfg := Load()
	if cfg.NATSURL != "nats://broker:4222" {
		t.Errorf("NATSURL = %q", cfg.NATSURL)
	}
	if cfg.BatchSize != 30 || cfg.ShutdownGrace != 2*time.Second {
		t.Errorf("BatchSize = %d, ShutdownGrace = %v", cfg.BatchSize, cfg.ShutdownGrace)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("empty HTTP_ADDR should fall back, got %q", cfg.HTTPAddr)
	}
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("BATCH_SIZE", "many")
	t.Setenv("SHUTDOWN_GRACE", "soon")

	cfg := Load()
	if cfg.BatchSize != 15 || cfg.ShutdownGrace != 5*time.Second {
		t.Errorf("BatchSize = %d, ShutdownGrace = %v", cfg.BatchSize, cfg.ShutdownGrace)
	}
}

func TestLoadTuning_EmptyPathGivesDefaults(t *testing.T) {
	tun, err := LoadTuning("")
	if err != nil {
		t.Fatal(err)
	}
	if tun != DefaultTuning() {
		t.Error("empty path did not return defaults")
	}
}

func TestLoadTuning_Overlay(t *testing.T) {
	path := writeFile(t, `
rppg:
  min_snr: 2
  heart_rate_band:
    low: 0.8
    high: 3
fatigue:
  break_interval: 45m
session:
  publish_interval: 1s
`)
	tun, err := LoadTuning(path)
	if err != nil {
		t.Fatal(err)
	}
	if tun.RPPG.MinSNR != 2 || tun.RPPG.HeartRateBand != (analysis.Band{Low: 0.8, High: 3}) {
		t.Errorf("rppg = %+v", tun.RPPG)
	}
	if tun.Fatigue.BreakInterval != 45*time.Minute {
		t.Errorf("break interval = %v", tun.Fatigue.BreakInterval)
	}
	if tun.Session.PublishInterval != time.Second {
		t.Errorf("publish interval = %v", tun.Session.PublishInterval)
	}
	// Untouched fields keep their defaults.
	if tun.RPPG.SampleRate != 30 || tun.Facial != DefaultTuning().Facial {
		t.Error("defaults lost")
	}
	if got := tun.Engines(); got.RPPG != tun.RPPG {
		t.Error("Engines did not carry rppg config")
	}
}

func TestLoadTuning_Errors(t *testing.T) {
	if _, err := LoadTuning(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v", err)
	}
	if _, err := LoadTuning(writeFile(t, "rppg: [")); err == nil {
		t.Error("malformed yaml accepted")
	}
	_, err := LoadTuning(writeFile(t, "rppg:\n  sample_rate: 0\n"))
	if !errors.Is(err, analysis.ErrInvalidConfig) {
		t.Errorf("invalid tuning: err = %v", err)
	}
}
