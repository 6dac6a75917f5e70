package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermission_ZeroValueIsViewer(t *testing.T) {
	t.Parallel()

	var permission Permission
	assert.Equal(t, PermissionViewer, permission)
	assert.False(t, permission.CanEdit())
	assert.False(t, permission.CanComment())
}

func TestPermission_CanEdit(t *testing.T) {
	t.Parallel()

	assert.True(t, PermissionOwner.CanEdit())
	assert.True(t, PermissionEditor.CanEdit())
	assert.False(t, PermissionCommenter.CanEdit())
	assert.False(t, PermissionViewer.CanEdit())
}

func TestPermission_CanComment(t *testing.T) {
	t.Parallel()

	assert.True(t, PermissionOwner.CanComment())
	assert.True(t, PermissionEditor.CanComment())
	assert.True(t, PermissionCommenter.CanComment())
	assert.False(t, PermissionViewer.CanComment())
}

func TestPermission_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "owner", PermissionOwner.String())
	assert.Equal(t, "editor", PermissionEditor.String())
	assert.Equal(t, "commenter", PermissionCommenter.String())
	assert.Equal(t, "viewer", PermissionViewer.String())
	assert.Equal(t, "unknown", Permission(42).String())
}

func TestSessionState(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "archived", StateArchived.String())
	assert.Equal(t, "locked", StateLocked.String())

	assert.True(t, StateArchived.IsTerminal())
	assert.False(t, StateActive.IsTerminal())
	assert.False(t, StateLocked.IsTerminal())
}

func TestCollaborator_Clone(t *testing.T) {
	t.Parallel()

	original := newCollaborator("bob", "bob@example.com", "Bob", PermissionEditor)
	original.Cursor = &CursorPosition{ElementID: "node-1", X: 1, Y: 2}
	original.Selection = []string{"node-1"}

	clone := original.Clone()
	clone.Cursor.ElementID = "node-9"
	clone.Selection[0] = "node-9"
	clone.Permission = PermissionViewer

	assert.Equal(t, "node-1", original.Cursor.ElementID)
	assert.Equal(t, "node-1", original.Selection[0])
	assert.Equal(t, PermissionEditor, original.Permission)
}

func TestSession_CanEdit(t *testing.T) {
	t.Parallel()

	session := newSession("d1", "flowchart", "Test", "alice", "", "Alice", DefaultSessionSettings())
	session.Collaborators["bob"] = newCollaborator("bob", "", "Bob", PermissionViewer)

	assert.True(t, session.CanEdit("alice"))
	assert.False(t, session.CanEdit("bob"))
	assert.False(t, session.CanEdit("ghost"))
}

func TestSession_OnlineCount(t *testing.T) {
	t.Parallel()

	session := newSession("d1", "flowchart", "Test", "alice", "", "Alice", DefaultSessionSettings())
	session.Collaborators["bob"] = newCollaborator("bob", "", "Bob", PermissionEditor)
	session.Collaborators["bob"].Online = false

	assert.Equal(t, 1, session.OnlineCount())
}

func TestDefaultSessionSettings(t *testing.T) {
	t.Parallel()

	settings := DefaultSessionSettings()
	assert.Equal(t, 50, settings.MaxCollaborators)
	assert.True(t, settings.AllowComments)
	assert.NotZero(t, settings.IdleTimeout)
}
