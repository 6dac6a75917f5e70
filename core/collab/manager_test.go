package collab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager := NewManager(DefaultManagerConfig())
	t.Cleanup(manager.Close)
	return manager
}

func newTestSession(t *testing.T, manager *Manager) *CollaborativeSession {
	t.Helper()
	session := manager.CreateSession(
		"diagram-1", "flowchart", "Checkout Flow",
		"alice", "alice@example.com", "Alice", nil)
	require.NotNil(t, session)
	return session
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	session := newTestSession(t, manager)

	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, "diagram-1", session.DiagramID)
	assert.Equal(t, StateActive, session.State)
	assert.Equal(t, "alice", session.OwnerID)

	owner, ok := session.Collaborator("alice")
	require.True(t, ok)
	assert.Equal(t, PermissionOwner, owner.Permission)
	assert.True(t, owner.Online)
}

func TestCreateSession_Cap(t *testing.T) {
	t.Parallel()

	manager := NewManager(ManagerConfig{MaxSessions: 1})
	t.Cleanup(manager.Close)

	first := manager.CreateSession("d1", "flowchart", "One", "alice", "", "Alice", nil)
	require.NotNil(t, first)

	second := manager.CreateSession("d2", "flowchart", "Two", "alice", "", "Alice", nil)
	assert.Nil(t, second)
}

func TestAddCollaborator(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	session := newTestSession(t, manager)

	ok := manager.AddCollaborator(session.SessionID, "bob", "bob@example.com", "Bob", PermissionEditor, "alice")
	require.True(t, ok)

	stored, ok := manager.GetSession(session.SessionID)
	require.True(t, ok)
	bob, ok := stored.Collaborator("bob")
	require.True(t, ok)
	assert.Equal(t, PermissionEditor, bob.Permission)
	assert.True(t, bob.Online)
}

func TestAddCollaborator_PermissionGating(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	session := newTestSession(t, manager)

	require.True(t, manager.AddCollaborator(session.SessionID, "bob", "", "Bob", PermissionViewer, "alice"))

	t.Run("viewer cannot invite", func(t *testing.T) {
		ok := manager.AddCollaborator(session.SessionID, "charlie", "", "Charlie", PermissionEditor, "bob")
		assert.False(t, ok)
	})

	t.Run("editor can invite", func(t *testing.T) {
		require.True(t, manager.UpdatePermission(session.SessionID, "bob", PermissionEditor, "alice"))
		ok := manager.AddCollaborator(session.SessionID, "charlie", "", "Charlie", PermissionViewer, "bob")
		assert.True(t, ok)
	})

	t.Run("unknown session", func(t *testing.T) {
		assert.False(t, manager.AddCollaborator("ghost", "dave", "", "Dave", PermissionViewer, ""))
	})

	t.Run("owner cannot be re-added", func(t *testing.T) {
		assert.False(t, manager.AddCollaborator(session.SessionID, "alice", "", "Alice", PermissionViewer, ""))
	})

	t.Run("owner permission not grantable on admission", func(t *testing.T) {
		assert.False(t, manager.AddCollaborator(session.SessionID, "mallory", "", "Mallory", PermissionOwner, "bob"))
		assert.False(t, manager.AddCollaborator(session.SessionID, "mallory", "", "Mallory", PermissionOwner, "alice"))

		stored, ok := manager.GetSession(session.SessionID)
		require.True(t, ok)
		_, joined := stored.Collaborator("mallory")
		assert.False(t, joined)

		owners := 0
		for _, collaborator := range stored.Collaborators {
			if collaborator.Permission == PermissionOwner {
				owners++
			}
		}
		assert.Equal(t, 1, owners, "A session holds exactly one owner entry")
	})
}

func TestAddCollaborator_Capacity(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	settings := DefaultSessionSettings()
	settings.MaxCollaborators = 2

	session := manager.CreateSession("d1", "flowchart", "Tight", "alice", "", "Alice", &settings)
	require.NotNil(t, session)

	assert.True(t, manager.AddCollaborator(session.SessionID, "bob", "", "Bob", PermissionEditor, "alice"))
	assert.False(t, manager.AddCollaborator(session.SessionID, "charlie", "", "Charlie", PermissionViewer, "alice"),
		"Member cap must reject a third collaborator")

	// Rejoining an existing member is not a capacity violation.
	assert.True(t, manager.AddCollaborator(session.SessionID, "bob", "", "Bob", PermissionEditor, "alice"))
}

func TestRemoveCollaborator(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	session := newTestSession(t, manager)
	require.True(t, manager.AddCollaborator(session.SessionID, "bob", "", "Bob", PermissionViewer, "alice"))

	t.Run("viewer cannot remove others", func(t *testing.T) {
		require.True(t, manager.AddCollaborator(session.SessionID, "charlie", "", "Charlie", PermissionViewer, "alice"))
		assert.False(t, manager.RemoveCollaborator(session.SessionID, "charlie", "bob"))
	})

	t.Run("self removal allowed", func(t *testing.T) {
		assert.True(t, manager.RemoveCollaborator(session.SessionID, "charlie", "charlie"))
	})

	t.Run("owner removes member", func(t *testing.T) {
		assert.True(t, manager.RemoveCollaborator(session.SessionID, "bob", "alice"))
		assert.Empty(t, manager.GetUserSessions("bob"))
	})

	t.Run("owner can never be removed", func(t *testing.T) {
		assert.False(t, manager.RemoveCollaborator(session.SessionID, "alice", "alice"))
	})
}

func TestUpdatePermission(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	session := newTestSession(t, manager)
	require.True(t, manager.AddCollaborator(session.SessionID, "bob", "", "Bob", PermissionViewer, "alice"))
	require.True(t, manager.AddCollaborator(session.SessionID, "charlie", "", "Charlie", PermissionEditor, "alice"))

	t.Run("owner promotes", func(t *testing.T) {
		require.True(t, manager.UpdatePermission(session.SessionID, "bob", PermissionEditor, "alice"))

		stored, _ := manager.GetSession(session.SessionID)
		bob, _ := stored.Collaborator("bob")
		assert.Equal(t, PermissionEditor, bob.Permission)
	})

	t.Run("non-owner cannot change permissions", func(t *testing.T) {
		assert.False(t, manager.UpdatePermission(session.SessionID, "bob", PermissionViewer, "charlie"))
	})

	t.Run("owner entry immutable", func(t *testing.T) {
		assert.False(t, manager.UpdatePermission(session.SessionID, "alice", PermissionViewer, "alice"))
	})

	t.Run("owner permission not grantable", func(t *testing.T) {
		assert.False(t, manager.UpdatePermission(session.SessionID, "bob", PermissionOwner, "alice"))
	})
}

func TestUpdateCollaboratorStatus(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	session := newTestSession(t, manager)
	require.True(t, manager.AddCollaborator(session.SessionID, "bob", "", "Bob", PermissionEditor, "alice"))

	cursor := &CursorPosition{ElementID: "node-1", X: 120, Y: 44}
	ok := manager.UpdateCollaboratorStatus(session.SessionID, "bob", true, cursor, []string{"node-1", "node-2"})
	require.True(t, ok)

	stored, _ := manager.GetSession(session.SessionID)
	bob, _ := stored.Collaborator("bob")
	require.NotNil(t, bob.Cursor)
	assert.Equal(t, "node-1", bob.Cursor.ElementID)
	assert.Equal(t, []string{"node-1", "node-2"}, bob.Selection)

	// Nil cursor and selection keep the previous values.
	require.True(t, manager.UpdateCollaboratorStatus(session.SessionID, "bob", false, nil, nil))
	stored, _ = manager.GetSession(session.SessionID)
	bob, _ = stored.Collaborator("bob")
	assert.False(t, bob.Online)
	require.NotNil(t, bob.Cursor)
	assert.Equal(t, "node-1", bob.Cursor.ElementID)
	assert.Len(t, bob.Selection, 2)
}

func TestUpdateCollaboratorStatus_Unknown(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	session := newTestSession(t, manager)

	assert.False(t, manager.UpdateCollaboratorStatus("ghost", "alice", true, nil, nil))
	assert.False(t, manager.UpdateCollaboratorStatus(session.SessionID, "ghost", true, nil, nil))
}

func TestArchiveSession(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	session := newTestSession(t, manager)
	require.True(t, manager.AddCollaborator(session.SessionID, "bob", "", "Bob", PermissionEditor, "alice"))

	t.Run("only owner archives", func(t *testing.T) {
		assert.False(t, manager.ArchiveSession(session.SessionID, "bob"))
	})

	t.Run("archive forces everyone offline", func(t *testing.T) {
		require.True(t, manager.ArchiveSession(session.SessionID, "alice"))

		stored, ok := manager.GetSession(session.SessionID)
		require.True(t, ok, "Archived sessions stay queryable")
		assert.Equal(t, StateArchived, stored.State)
		assert.Equal(t, 0, stored.OnlineCount())
	})

	t.Run("archive is terminal", func(t *testing.T) {
		assert.False(t, manager.ArchiveSession(session.SessionID, "alice"))
		assert.False(t, manager.AddCollaborator(session.SessionID, "dave", "", "Dave", PermissionViewer, "alice"))
		assert.False(t, manager.ResumeSession(session.SessionID, "alice"))
	})
}

func TestLockAndUnlockSession(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	session := newTestSession(t, manager)

	t.Run("only owner locks", func(t *testing.T) {
		assert.False(t, manager.LockSession(session.SessionID, "bob"))
	})

	t.Run("locked session freezes membership", func(t *testing.T) {
		require.True(t, manager.LockSession(session.SessionID, "alice"))
		assert.False(t, manager.AddCollaborator(session.SessionID, "bob", "", "Bob", PermissionEditor, "alice"))
	})

	t.Run("unlock restores membership changes", func(t *testing.T) {
		require.True(t, manager.UnlockSession(session.SessionID, "alice"))
		assert.True(t, manager.AddCollaborator(session.SessionID, "bob", "", "Bob", PermissionEditor, "alice"))
	})
}

func TestPauseAndResumeSession(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	session := newTestSession(t, manager)

	require.True(t, manager.PauseSession(session.SessionID, "alice"))
	assert.False(t, manager.PauseSession(session.SessionID, "alice"), "Pause requires an active session")
	assert.False(t, manager.LockSession(session.SessionID, "alice"), "Lock requires an active session")

	require.True(t, manager.ResumeSession(session.SessionID, "alice"))
	stored, _ := manager.GetSession(session.SessionID)
	assert.Equal(t, StateActive, stored.State)
}

func TestGetSession_ReturnsCopy(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	session := newTestSession(t, manager)

	copy1, ok := manager.GetSession(session.SessionID)
	require.True(t, ok)
	copy1.Title = "mutated"
	copy1.Collaborators["alice"].Permission = PermissionViewer

	copy2, ok := manager.GetSession(session.SessionID)
	require.True(t, ok)
	assert.Equal(t, "Checkout Flow", copy2.Title)
	assert.Equal(t, PermissionOwner, copy2.Collaborators["alice"].Permission)
}

func TestGetUserSessions(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	first := newTestSession(t, manager)
	second := manager.CreateSession("diagram-2", "sequence", "Login Flow", "alice", "", "Alice", nil)
	require.NotNil(t, second)

	ids := manager.GetUserSessions("alice")
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, first.SessionID)
	assert.Contains(t, ids, second.SessionID)

	assert.Empty(t, manager.GetUserSessions("ghost"))
}

func TestGetSessionStatistics(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	session := newTestSession(t, manager)
	require.True(t, manager.AddCollaborator(session.SessionID, "bob", "", "Bob", PermissionEditor, "alice"))
	require.True(t, manager.AddCollaborator(session.SessionID, "carol", "", "Carol", PermissionViewer, "alice"))
	require.True(t, manager.UpdateCollaboratorStatus(session.SessionID, "carol", false, nil, nil))

	stats, ok := manager.GetSessionStatistics(session.SessionID)
	require.True(t, ok)

	assert.Equal(t, 3, stats.CollaboratorCount)
	assert.Equal(t, 2, stats.OnlineCount)
	assert.Equal(t, 1, stats.Editors)
	assert.Equal(t, 1, stats.Viewers)
	assert.Equal(t, "active", stats.State)
}

func TestManagerStats(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	first := newTestSession(t, manager)
	second := manager.CreateSession("diagram-2", "sequence", "Two", "bob", "", "Bob", nil)
	require.NotNil(t, second)

	require.True(t, manager.ArchiveSession(first.SessionID, "alice"))

	stats := manager.Stats()
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 1, stats.ArchivedSessions)
	assert.Equal(t, int64(2), stats.TotalCreated)
	assert.Equal(t, int64(1), stats.TotalArchived)
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	manager := newTestManager(t)
	events := make(chan *Event, 16)
	unsubscribe := manager.Subscribe(func(event *Event) {
		events <- event
	})

	session := newTestSession(t, manager)

	event := waitForEvent(t, events, EventSessionCreated)
	assert.Equal(t, session.SessionID, event.SessionID)
	require.NotNil(t, event.Collaborator)
	assert.Equal(t, "alice", event.Collaborator.UserID)

	require.True(t, manager.AddCollaborator(session.SessionID, "bob", "", "Bob", PermissionEditor, "alice"))
	event = waitForEvent(t, events, EventCollaboratorJoined)
	assert.Equal(t, PermissionEditor, event.Permission)

	unsubscribe()
	require.True(t, manager.RemoveCollaborator(session.SessionID, "bob", "alice"))
	select {
	case event := <-events:
		t.Fatalf("Received event after unsubscribe: %v", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitForEvent(t *testing.T, events <-chan *Event, want EventType) *Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Type == want {
				return event
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for %v event", want)
		}
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	manager := NewManager(DefaultManagerConfig())
	session := manager.CreateSession("d1", "flowchart", "One", "alice", "", "Alice", nil)
	require.NotNil(t, session)

	manager.Close()

	assert.Nil(t, manager.CreateSession("d2", "flowchart", "Two", "alice", "", "Alice", nil))
	assert.False(t, manager.AddCollaborator(session.SessionID, "bob", "", "Bob", PermissionEditor, "alice"))
	_, ok := manager.GetSession(session.SessionID)
	assert.False(t, ok)
	assert.Equal(t, 0, manager.SessionCount())
}
