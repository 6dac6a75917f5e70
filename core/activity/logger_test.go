package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	t.Parallel()

	logger := NewLogger(LoggerConfig{})
	entry := logger.Record(Entry{
		SessionID: "s1",
		DiagramID: "d1",
		UserID:    "alice",
		Type:      TypeCommit,
	})

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())

	stored := logger.SessionActivity("s1", 0)
	require.Len(t, stored, 1)
	assert.Equal(t, entry.ID, stored[0].ID)
}

func TestRecord_PreservesExplicitFields(t *testing.T) {
	t.Parallel()

	logger := NewLogger(LoggerConfig{})
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := logger.Record(Entry{
		ID:        "fixed-id",
		SessionID: "s1",
		Type:      TypeEdit,
		Timestamp: stamp,
	})

	assert.Equal(t, "fixed-id", entry.ID)
	assert.Equal(t, stamp, entry.Timestamp)
}

func TestRecord_RingCap(t *testing.T) {
	t.Parallel()

	logger := NewLogger(LoggerConfig{MaxPerSession: 3})
	for i := 0; i < 5; i++ {
		logger.Record(Entry{
			SessionID: "s1",
			UserID:    "alice",
			Type:      TypeEdit,
			Details:   map[string]any{"seq": i},
		})
	}

	entries := logger.SessionActivity("s1", 0)
	require.Len(t, entries, 3)

	// Newest first; the two oldest entries fell off.
	assert.Equal(t, 4, entries[0].Details["seq"])
	assert.Equal(t, 2, entries[2].Details["seq"])

	stats := logger.Stats()
	assert.Equal(t, int64(5), stats.TotalEntries)
	assert.Equal(t, 3, stats.Retained)
}

func TestSessionActivity_Limit(t *testing.T) {
	t.Parallel()

	logger := NewLogger(LoggerConfig{})
	for i := 0; i < 4; i++ {
		logger.Record(Entry{SessionID: "s1", Type: TypeEdit, Details: map[string]any{"seq": i}})
	}

	entries := logger.SessionActivity("s1", 2)
	require.Len(t, entries, 2)
	assert.Equal(t, 3, entries[0].Details["seq"])

	assert.Empty(t, logger.SessionActivity("ghost", 0))
}

func TestUserActivity(t *testing.T) {
	t.Parallel()

	logger := NewLogger(LoggerConfig{})
	logger.Record(Entry{SessionID: "s1", UserID: "alice", Type: TypeCommit})
	logger.Record(Entry{SessionID: "s2", UserID: "alice", Type: TypeJoin})
	logger.Record(Entry{SessionID: "s1", UserID: "bob", Type: TypeEdit})

	entries := logger.UserActivity("alice", 0)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "alice", entry.UserID)
	}
}

func TestQuery(t *testing.T) {
	t.Parallel()

	logger := NewLogger(LoggerConfig{})
	logger.Record(Entry{SessionID: "s1", DiagramID: "flow-1", UserID: "alice", Type: TypeEdit, ElementID: "node-1"})
	logger.Record(Entry{SessionID: "s1", DiagramID: "flow-1", UserID: "bob", Type: TypeEdit, ElementID: "edge-7"})
	logger.Record(Entry{SessionID: "s2", DiagramID: "seq-1", UserID: "alice", Type: TypeCommit, ElementID: "node-2"})

	t.Run("by session", func(t *testing.T) {
		entries, err := logger.Query(Filter{SessionID: "s1"})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("by user", func(t *testing.T) {
		entries, err := logger.Query(Filter{UserID: "alice"})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("by type", func(t *testing.T) {
		entries, err := logger.Query(Filter{Types: []Type{TypeCommit}})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, TypeCommit, entries[0].Type)
	})

	t.Run("element glob", func(t *testing.T) {
		entries, err := logger.Query(Filter{ElementPattern: "node-*"})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("diagram glob", func(t *testing.T) {
		entries, err := logger.Query(Filter{DiagramPattern: "flow-*"})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("combined filters", func(t *testing.T) {
		entries, err := logger.Query(Filter{UserID: "alice", ElementPattern: "node-*", SessionID: "s2"})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "node-2", entries[0].ElementID)
	})

	t.Run("malformed pattern", func(t *testing.T) {
		_, err := logger.Query(Filter{ElementPattern: "[unclosed"})
		assert.Error(t, err)
	})
}

func TestQuery_TimeWindow(t *testing.T) {
	t.Parallel()

	logger := NewLogger(LoggerConfig{})
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	logger.Record(Entry{SessionID: "s1", Type: TypeEdit, Timestamp: early})
	logger.Record(Entry{SessionID: "s1", Type: TypeEdit, Timestamp: late})

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	entries, err := logger.Query(Filter{Since: &cutoff})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, late, entries[0].Timestamp)

	entries, err = logger.Query(Filter{Until: &cutoff})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, early, entries[0].Timestamp)
}

func TestStats_ByType(t *testing.T) {
	t.Parallel()

	logger := NewLogger(LoggerConfig{})
	logger.Record(Entry{SessionID: "s1", Type: TypeCommit})
	logger.Record(Entry{SessionID: "s1", Type: TypeCommit})
	logger.Record(Entry{SessionID: "s2", Type: TypeMerge})

	stats := logger.Stats()
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, 2, stats.Sessions)
	assert.Equal(t, int64(2), stats.ByType["commit"])
	assert.Equal(t, int64(1), stats.ByType["merge"])
}

func TestType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "commit", TypeCommit.String())
	assert.Equal(t, "branch_created", TypeBranchCreated.String())
	assert.Equal(t, "permission_changed", TypePermissionChanged.String())
	assert.Equal(t, "unknown", Type(99).String())
}
