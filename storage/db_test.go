package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Put([]byte("bond/a"), []byte("1")))
	require.NoError(t, db.Put([]byte("bond/b"), []byte("2")))
	require.NoError(t, db.Put([]byte("other/c"), []byte("3")))

	batch := db.NewBatch()
	batch.Put([]byte("bond/c"), []byte("4"))
	batch.Delete([]byte("bond/a"))
	require.Equal(t, 2, batch.Len())

	// Nothing is visible before Write.
	_, err = db.Get([]byte("bond/c"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, batch.Write())
	value, err := db.Get([]byte("bond/c"))
	require.NoError(t, err)
	require.Equal(t, []byte("4"), value)
	_, err = db.Get([]byte("bond/a"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDB(t *testing.T) {
	exerciseDatabase(t, NewMemDB())
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestMemDBReturnsCopies(t *testing.T) {
	db := NewMemDB()
	raw := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), raw))
	raw[0] = 'z'
	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}
