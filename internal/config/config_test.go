package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, "gpt-4", cfg.Generation.Model)
	assert.InDelta(t, 0.2, cfg.Generation.Temperature, 1e-6)
	assert.Equal(t, "clang", cfg.Toolchain.Clang)
	assert.Equal(t, []string{"-O0"}, cfg.Toolchain.Flags)
	assert.Equal(t, 30*time.Second, cfg.Toolchain.CompileTimeout)
	assert.Equal(t, 100, cfg.Benchmark.Repetitions)
}

func TestLoadDevelopmentDebug(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("CLANG_FLAGS", "-O1 -march=native")
	t.Setenv("BENCHMARK_REPETITIONS", "10")
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("COMPILE_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"-O1", "-march=native"}, cfg.Toolchain.Flags)
	assert.Equal(t, 10, cfg.Benchmark.Repetitions)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.Equal(t, 5*time.Second, cfg.Toolchain.CompileTimeout)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown database", "DB_TYPE", "postgres"},
		{"zero repetitions", "BENCHMARK_REPETITIONS", "0"},
		{"non-numeric port", "HTTP_PORT", "eighty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", "production")
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
