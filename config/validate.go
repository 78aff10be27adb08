package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// MinJWTSecretLength guards against trivially guessable HMAC secrets.
var MinJWTSecretLength = 32

// Validate checks the configuration before the service starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if !common.IsHexAddress(c.AdminAddress) || common.HexToAddress(c.AdminAddress) == (common.Address{}) {
		return fmt.Errorf("config: AdminAddress must be a non-zero hex address")
	}
	if c.VaultAddress != "" && !common.IsHexAddress(c.VaultAddress) {
		return fmt.Errorf("config: VaultAddress must be a hex address")
	}
	switch c.Database {
	case "leveldb":
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("config: DataDir required for leveldb")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unsupported Database %q", c.Database)
	}
	switch c.Indexer.Driver {
	case "postgres", "sqlite":
		if strings.TrimSpace(c.Indexer.DSN) == "" {
			return fmt.Errorf("config: Indexer.DSN required")
		}
	default:
		return fmt.Errorf("config: unsupported Indexer.Driver %q", c.Indexer.Driver)
	}
	if len(c.JWT.Secret) < MinJWTSecretLength {
		return fmt.Errorf("config: JWT secret must be at least %d bytes", MinJWTSecretLength)
	}
	if c.ClaimRateLimit.PerSecond <= 0 || c.ClaimRateLimit.Burst <= 0 {
		return fmt.Errorf("config: ClaimRateLimit must be positive")
	}
	return nil
}
