package devicedb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkSeenFirstArrival(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "devices.db"))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	first, err := db.MarkSeen(`\\?\USB#VID_1234&PID_5678#serial`, now)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := db.MarkSeen(`\\?\USB#VID_1234&PID_5678#serial`, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, again, "second arrival of the same path must not be first-seen")

	other, err := db.MarkSeen(`\\?\USB#VID_aaaa&PID_bbbb#other`, now)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestLedgerSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.db")

	db, err := Open(path)
	require.NoError(t, err)
	first, err := db.MarkSeen("/devices/usb1/1-1", time.Now())
	require.NoError(t, err)
	require.True(t, first)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	first, err = db.MarkSeen("/devices/usb1/1-1", time.Now())
	require.NoError(t, err)
	assert.False(t, first, "first-seen state must persist across restarts")
}
