package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	envJWTSecret = "BONDD_JWT_SECRET"
	envName      = "BONDD_ENV"
	envIndexDSN  = "BONDD_INDEXER_DSN"
)

type Config struct {
	ListenAddress  string    `toml:"ListenAddress"`
	Environment    string    `toml:"Environment"`
	Database       string    `toml:"Database"`
	DataDir        string    `toml:"DataDir"`
	AdminAddress   string    `toml:"AdminAddress"`
	VaultAddress   string    `toml:"VaultAddress,omitempty"`
	JWT            JWT       `toml:"jwt"`
	ClaimRateLimit RateLimit `toml:"claim_rate_limit"`
	Indexer        Indexer   `toml:"indexer"`
	Log            Log       `toml:"log"`
	Pauses         Pauses    `toml:"pauses"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		ListenAddress:  ":8080",
		Environment:    "local",
		Database:       "leveldb",
		DataDir:        "./bond-data",
		JWT:            JWT{Issuer: "bondd", MaxSkewSeconds: 30},
		ClaimRateLimit: RateLimit{PerSecond: 5, Burst: 10},
		Indexer:        Indexer{Driver: "sqlite", DSN: "file:bond-index.db"},
		Log:            Log{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 14},
	}
}

// Load loads the configuration from the given path. A missing file is created
// with defaults. Secrets and the environment name may be supplied through
// BONDD_* variables, which take precedence over the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	if strings.TrimSpace(cfg.Database) == "" {
		cfg.Database = "leveldb"
	}
	cfg.Database = strings.ToLower(strings.TrimSpace(cfg.Database))
	cfg.Indexer.Driver = strings.ToLower(strings.TrimSpace(cfg.Indexer.Driver))
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(envJWTSecret); ok && strings.TrimSpace(v) != "" {
		cfg.JWT.Secret = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(envName); ok && strings.TrimSpace(v) != "" {
		cfg.Environment = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(envIndexDSN); ok && strings.TrimSpace(v) != "" {
		cfg.Indexer.DSN = strings.TrimSpace(v)
	}
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
