package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elysia-dev/elysia-korea-pf/storage"
)

func TestRunReleasesStateStoreOnSetupFailure(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	cfgPath := filepath.Join(dir, "bondd.toml")
	cfg := fmt.Sprintf(`ListenAddress = "127.0.0.1:0"
Database = "leveldb"
DataDir = %q
AdminAddress = "0x00000000000000000000000000000000000000ad"

[indexer]
Driver = "sqlite"
DSN = %q
`, dataDir, filepath.Join(dir, "missing", "index.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	t.Setenv("BONDD_JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("BONDD_INDEXER_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	err := run(cfgPath)
	require.ErrorContains(t, err, "open indexer")

	// A leaked handle would still hold the LevelDB lock.
	db, err := storage.NewLevelDB(filepath.Join(dataDir, "state"))
	require.NoError(t, err)
	db.Close()
}
