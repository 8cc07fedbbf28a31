package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	for _, key := range []string{"PORT", "PG_HOST", "PG_PASSWORD", "PG_EMBEDDED_PORT", "SOLVER_TIMEOUT", "SOLVER_INTERPRETER", "APP_DEBUG"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3220", cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.EmbeddedPort)
	assert.Equal(t, "python3", cfg.Solver.Interpreter)
	assert.Equal(t, 10*time.Minute, cfg.Solver.Timeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_DEBUG", "true")
	t.Setenv("PG_EMBEDDED_PORT", "6543")
	t.Setenv("PG_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("SOLVER_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 6543, cfg.Database.EmbeddedPort)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.Equal(t, 90*time.Second, cfg.Solver.Timeout)

	t.Setenv("SOLVER_TIMEOUT", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "SOLVER_TIMEOUT")
}
