// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	AdminPort     string // empty disables the admin HTTP server
	CircuitPath   string
	NargoBin      string
	ProverBin     string
	MaxSessions   int
	ProveTimeout  time.Duration
	WorkDir       string // empty means the OS temp dir
	DBPath        string
	RecordTTL     time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		AdminPort:     getEnv("ADMIN_PORT", "8081"),
		CircuitPath:   getEnv("CIRCUIT_PATH", ""),
		NargoBin:      getEnv("NARGO_BIN", "nargo"),
		ProverBin:     getEnv("PROVER_BIN", "bb"),
		MaxSessions:   getEnvInt("MAX_SESSIONS", 32),
		ProveTimeout:  getEnvDuration("PROVE_TIMEOUT", 2*time.Minute),
		WorkDir:       getEnv("WORK_DIR", ""),
		DBPath:        getEnv("DB_PATH", "./data/verifier.db"),
		RecordTTL:     getEnvDuration("RECORD_TTL", 7*24*time.Hour),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.CircuitPath == "" {
		return fmt.Errorf("CIRCUIT_PATH must point at the compiled circuit directory")
	}
	if c.NargoBin == "" {
		return fmt.Errorf("NARGO_BIN cannot be empty")
	}
	if c.ProverBin == "" {
		return fmt.Errorf("PROVER_BIN cannot be empty")
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("MAX_SESSIONS must be > 0")
	}
	if c.ProveTimeout <= 0 {
		return fmt.Errorf("PROVE_TIMEOUT must be > 0")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
