// Package config reads server settings from the environment and the optional
// pacing file. A .env file in the working directory is folded into the
// environment before reading.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the process-level configuration.
type Config struct {
	ListenAddr  string
	RedisAddr   string
	DatabaseURL string
	JWTSecret   string
	LogLevel    string
	PacingFile  string
	BoardDir    string
}

// Load reads .env when present, then the environment.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		ListenAddr:  envOr("LISTEN_ADDR", ":8080"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   envOr("JWT_SECRET", "dev-secret"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		PacingFile:  os.Getenv("PACING_FILE"),
		BoardDir:    os.Getenv("BOARD_DIR"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Logger builds the process logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
		log.WithField("level", c.LogLevel).Warn("unknown log level, using info")
	}
	log.SetLevel(level)
	return log
}

// Pacing tunes the client-facing animation timing and match retention.
type Pacing struct {
	RollFrames     int     `yaml:"roll_frames"`
	RollDurationMs int     `yaml:"roll_duration_ms"`
	RollAccel      float64 `yaml:"roll_accel"`
	StepDelayMs    int     `yaml:"step_delay_ms"`
	MatchTTLMin    int     `yaml:"match_ttl_min"`
}

// DefaultPacing matches the stock client animation.
func DefaultPacing() Pacing {
	return Pacing{
		RollFrames:     8,
		RollDurationMs: 1500,
		RollAccel:      1.6,
		StepDelayMs:    250,
		MatchTTLMin:    60,
	}
}

// LoadPacing reads the pacing file over the defaults. An empty path returns
// the defaults unchanged.
func LoadPacing(path string) (Pacing, error) {
	p := DefaultPacing()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read pacing file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parse pacing file: %w", err)
	}
	return p, nil
}

// RollDuration returns the total roll animation time.
func (p Pacing) RollDuration() time.Duration {
	return time.Duration(p.RollDurationMs) * time.Millisecond
}

// StepDelay returns the pause between movement steps.
func (p Pacing) StepDelay() time.Duration {
	return time.Duration(p.StepDelayMs) * time.Millisecond
}

// MatchTTL returns how long a finished match stays readable.
func (p Pacing) MatchTTL() time.Duration {
	return time.Duration(p.MatchTTLMin) * time.Minute
}
