// Package config loads service settings from the environment and engine
// tuning from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ivanzxc/go-realtime-vitals/internal/analysis"
	"github.com/ivanzxc/go-realtime-vitals/internal/facial"
	"github.com/ivanzxc/go-realtime-vitals/internal/session"
	"github.com/ivanzxc/go-realtime-vitals/internal/stream"
)

// Config is the service configuration shared by every command.
type Config struct {
	NATSURL       string
	HTTPAddr      string
	LogLevel      string
	Environment   string
	TuningFile    string
	SubjectPrefix string
	BatchSize     int
	ShutdownGrace time.Duration
}

// IsProduction reports whether GO_ENV selects production logging.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads .env when present, then the process environment.
func Load() Config {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	return Config{
		NATSURL:       getEnv("NATS_URL", "nats://localhost:4222"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Environment:   getEnv("GO_ENV", "development"),
		TuningFile:    getEnv("TUNING_FILE", ""),
		SubjectPrefix: getEnv("SUBJECT_PREFIX", stream.DefaultPrefix),
		BatchSize:     getEnvInt("BATCH_SIZE", 15),
		ShutdownGrace: getEnvDuration("SHUTDOWN_GRACE", 5*time.Second),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// Tuning holds every engine parameter that may be overridden from YAML.
type Tuning struct {
	RPPG    analysis.Config        `yaml:"rppg"`
	Fatigue analysis.FatigueConfig `yaml:"fatigue"`
	Facial  facial.Config          `yaml:"facial"`
	Session session.Config         `yaml:"session"`
}

// DefaultTuning returns the built-in defaults.
func DefaultTuning() Tuning {
	e := session.DefaultEngines()
	return Tuning{
		RPPG:    e.RPPG,
		Fatigue: e.Fatigue,
		Facial:  e.Facial,
		Session: session.DefaultConfig(),
	}
}

// Engines returns the per-session engine configuration.
func (t Tuning) Engines() session.Engines {
	return session.Engines{RPPG: t.RPPG, Fatigue: t.Fatigue, Facial: t.Facial}
}

// Validate checks every section.
func (t Tuning) Validate() error {
	return errors.Join(
		t.RPPG.Validate(),
		t.Fatigue.Validate(),
		t.Facial.Validate(),
		t.Session.Validate(),
	)
}

// LoadTuning overlays the YAML file at path on the defaults. An empty path
// returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return t, nil
}
