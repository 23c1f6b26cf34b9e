package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"LISTEN_ADDR", "REDIS_ADDR", "DATABASE_URL", "JWT_SECRET", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "dev-secret", cfg.JWTSecret)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoggerFallsBackOnBadLevel(t *testing.T) {
	cfg := Config{LogLevel: "chatty"}
	log := cfg.Logger()
	assert.Equal(t, "info", log.GetLevel().String())
}

func TestDefaultPacing(t *testing.T) {
	p, err := LoadPacing("")
	require.NoError(t, err)
	assert.Equal(t, 8, p.RollFrames)
	assert.Equal(t, 1500*time.Millisecond, p.RollDuration())
	assert.Equal(t, 250*time.Millisecond, p.StepDelay())
	assert.Equal(t, time.Hour, p.MatchTTL())
}

func TestLoadPacingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pacing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"roll_frames: 3\nroll_duration_ms: 600\nstep_delay_ms: 10\n"), 0o644))

	p, err := LoadPacing(path)
	require.NoError(t, err)
	assert.Equal(t, 3, p.RollFrames)
	assert.Equal(t, 600*time.Millisecond, p.RollDuration())
	assert.Equal(t, 10*time.Millisecond, p.StepDelay())
	assert.Equal(t, 1.6, p.RollAccel, "unset keys keep their defaults")
}

func TestLoadPacingMissingFile(t *testing.T) {
	p, err := LoadPacing(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	assert.Equal(t, DefaultPacing(), p, "defaults returned alongside the error")
}
