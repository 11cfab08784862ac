package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		// Analyze streams run for as long as the four generation stages
		// take, so they get their own bound instead of the request timeout.
		StreamTimeout  time.Duration `env:"HTTP_STREAM_TIMEOUT" envDefault:"10m"`
		RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"2m"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Database struct {
		Type string `env:"DB_TYPE" envDefault:"memory"`
		DSN  string `env:"DB_DSN"`
	}
	Generation struct {
		APIKey      string        `env:"OPENAI_API_KEY"`
		Model       string        `env:"OPENAI_MODEL" envDefault:"gpt-4"`
		BaseURL     string        `env:"OPENAI_BASE_URL"`
		Temperature float32       `env:"GENERATION_TEMPERATURE" envDefault:"0.2"`
		Timeout     time.Duration `env:"GENERATION_TIMEOUT" envDefault:"3m"`
		RateLimit   float64       `env:"GENERATION_RATE_LIMIT" envDefault:"1"`
		RateBurst   int           `env:"GENERATION_RATE_BURST" envDefault:"4"`
	}
	Toolchain struct {
		Clang          string        `env:"CLANG_PATH" envDefault:"clang"`
		Flags          []string      `env:"CLANG_FLAGS" envSeparator:" " envDefault:"-O0"`
		CompileTimeout time.Duration `env:"COMPILE_TIMEOUT" envDefault:"30s"`
		WorkDir        string        `env:"TOOLCHAIN_WORKDIR"`
		MaxConcurrent  int64         `env:"TOOLCHAIN_MAX_CONCURRENT" envDefault:"2"`
	}
	Benchmark struct {
		Repetitions int `env:"BENCHMARK_REPETITIONS" envDefault:"100"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Environment == "development" && os.Getenv("LOG_LEVEL") == "" {
		cfg.Logging.Level = "debug"
	}

	switch strings.ToLower(cfg.Database.Type) {
	case "memory":
	case "sqlite":
		if cfg.Database.DSN == "" {
			cfg.Database.DSN = "file:" + filepath.Join("data", "irtune.db") + "?_pragma=busy_timeout(5000)"
		}
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q", cfg.Database.Type)
	}

	if cfg.Benchmark.Repetitions <= 0 {
		return nil, fmt.Errorf("BENCHMARK_REPETITIONS must be positive, got %d", cfg.Benchmark.Repetitions)
	}
	if cfg.Toolchain.MaxConcurrent <= 0 {
		cfg.Toolchain.MaxConcurrent = 1
	}

	return cfg, nil
}
