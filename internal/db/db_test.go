package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lookind.db")
	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	for _, table := range []string{"event_ledger", "aux_functions"} {
		var name string
		err := d.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lookind.db")
	d, err := Open(path)
	require.NoError(t, err)
	_, err = d.Exec(`INSERT INTO aux_functions (remote_uuid, name, payload, updated_at) VALUES ('A1B2', 'power', '{}', 1)`)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = Open(path)
	require.NoError(t, err)
	defer d.Close()

	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM aux_functions`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpen_Memory(t *testing.T) {
	d, err := Open(":memory:")
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Exec(`INSERT INTO event_ledger (event_type, timestamp) VALUES ('learn_completed', 1)`)
	require.NoError(t, err)
	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM event_ledger`).Scan(&n))
	assert.Equal(t, 1, n)
}
