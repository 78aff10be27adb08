package config

// JWT configures bearer authentication for administrative endpoints.
type JWT struct {
	Secret   string `toml:"Secret"`
	Issuer   string `toml:"Issuer"`
	Audience string `toml:"Audience"`
	// MaxSkewSeconds tolerates clock drift when validating exp/nbf.
	MaxSkewSeconds int64 `toml:"MaxSkewSeconds"`
}

// RateLimit throttles the public claim endpoint per client address.
type RateLimit struct {
	PerSecond float64 `toml:"PerSecond"`
	Burst     int     `toml:"Burst"`
}

// Log configures the structured logger.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Indexer selects the relational store used for the event index and
// idempotency records.
type Indexer struct {
	// Driver is "postgres" or "sqlite".
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Pauses halts mutations per module while reads keep working.
type Pauses struct {
	Bond  bool `toml:"Bond"`
	ERC20 bool `toml:"ERC20"`
}
