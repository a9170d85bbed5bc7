package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundlink/pkg/db"
)

// setupTestStore creates a test database and store for each test.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	s := NewSQLiteStore(d)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStateStore(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	_, ok := s.GetState(ctx, "link.address")
	assert.False(t, ok, "missing key should report not found")

	require.NoError(t, s.SetState(ctx, "link.address", "udpin://0.0.0.0:14540"))
	val, ok := s.GetState(ctx, "link.address")
	assert.True(t, ok)
	assert.Equal(t, "udpin://0.0.0.0:14540", val)

	require.NoError(t, s.SetState(ctx, "link.address", "tcp://10.0.0.2:5760"))
	val, _ = s.GetState(ctx, "link.address")
	assert.Equal(t, "tcp://10.0.0.2:5760", val, "set must replace")

	require.NoError(t, s.SetState(ctx, "autostart.enabled", "true"))
	all, err := s.ListState(ctx, "link.")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"link.address": "tcp://10.0.0.2:5760"}, all)

	require.NoError(t, s.DeleteState(ctx, "link.address"))
	_, ok = s.GetState(ctx, "link.address")
	assert.False(t, ok)
}

func TestEventStore(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	events, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	for _, ev := range []*CommandEvent{
		{SessionID: "s1", Command: "arm", Success: false, Detail: "preflight failed"},
		{SessionID: "s1", Command: "arm", Success: true},
		{SessionID: "s1", Command: "takeoff", Success: true, Detail: "alt=5.0"},
	} {
		require.NoError(t, s.RecordEvent(ctx, ev))
		assert.NotZero(t, ev.ID)
	}

	events, err = s.RecentEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "takeoff", events[0].Command, "newest first")
	assert.Equal(t, "alt=5.0", events[0].Detail)
	assert.Equal(t, "arm", events[1].Command)
	assert.True(t, events[1].Success)
	assert.Equal(t, "s1", events[1].SessionID)
}
