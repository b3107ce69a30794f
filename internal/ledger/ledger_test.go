package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/lookind/internal/db"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return New(d.DB)
}

func TestAppendAndGetByType(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.Append(EventStatusApplied, "A1B2", map[string]any{"status": "28A0", "attempts": 1}))
	require.NoError(t, l.AppendWithSource(EventStatusTimeout, "A1B2", "mqtt", map[string]any{"status": "3410"}))
	require.NoError(t, l.Append(EventLearnFailed, "C3D4", nil))

	applied, err := l.GetByType(EventStatusApplied, 10)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "A1B2", applied[0].RemoteUUID)
	assert.Equal(t, "28A0", applied[0].Payload["status"])
	assert.EqualValues(t, 1, applied[0].Payload["attempts"])

	timeouts, err := l.GetByType(EventStatusTimeout, 10)
	require.NoError(t, err)
	require.Len(t, timeouts, 1)
	assert.Equal(t, "mqtt", timeouts[0].Source)

	failed, err := l.GetByType(EventLearnFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Nil(t, failed[0].Payload)
}

func TestGetByRemote_NewestFirst(t *testing.T) {
	l := newTestLedger(t)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Append(EventLearnCompleted, "A1B2", map[string]any{"function": "power"}))
	now = now.Add(time.Minute)
	require.NoError(t, l.Append(EventFunctionFallback, "A1B2", map[string]any{"function": "mute"}))
	require.NoError(t, l.Append(EventLearnCompleted, "FFFF", nil))

	entries, err := l.GetByRemote("A1B2", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EventFunctionFallback, entries[0].EventType)
	assert.Equal(t, EventLearnCompleted, entries[1].EventType)

	ranged, err := l.GetByTimeRange(now.Add(-time.Second), now, 10)
	require.NoError(t, err)
	assert.Len(t, ranged, 2)
}

func TestDeleteOlderThan(t *testing.T) {
	l := newTestLedger(t)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Append(EventStatusApplied, "A1B2", nil))
	now = now.Add(48 * time.Hour)
	require.NoError(t, l.Append(EventStatusApplied, "A1B2", nil))

	deleted, err := l.DeleteOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	entries, err := l.GetByType(EventStatusApplied, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
