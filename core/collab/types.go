package collab

import (
	"time"
)

// =============================================================================
// Permissions
// =============================================================================

// Permission is a collaborator's access level within one session. The zero
// value is the least-privileged level, so a forgotten permission never
// grants access.
type Permission int

const (
	PermissionViewer Permission = iota
	PermissionCommenter
	PermissionEditor
	PermissionOwner
)

var permissionNames = map[Permission]string{
	PermissionOwner:     "owner",
	PermissionEditor:    "editor",
	PermissionCommenter: "commenter",
	PermissionViewer:    "viewer",
}

func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "unknown"
}

// CanEdit reports whether the permission allows mutating the document or
// inviting/removing collaborators.
func (p Permission) CanEdit() bool {
	return p == PermissionOwner || p == PermissionEditor
}

// CanComment reports whether the permission allows leaving comments.
func (p Permission) CanComment() bool {
	return p != PermissionViewer
}

// =============================================================================
// Session State
// =============================================================================

type SessionState int

const (
	StateActive SessionState = iota
	StatePaused
	StateArchived
	StateLocked
)

var sessionStateNames = map[SessionState]string{
	StateActive:   "active",
	StatePaused:   "paused",
	StateArchived: "archived",
	StateLocked:   "locked",
}

func (s SessionState) String() string {
	if name, ok := sessionStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether the session can no longer change.
func (s SessionState) IsTerminal() bool {
	return s == StateArchived
}

// =============================================================================
// Configuration
// =============================================================================

// SessionSettings carries per-session behavior toggles supplied at creation.
type SessionSettings struct {
	MaxCollaborators int           `json:"max_collaborators" yaml:"max_collaborators"`
	AllowComments    bool          `json:"allow_comments" yaml:"allow_comments"`
	IdleTimeout      time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

func DefaultSessionSettings() SessionSettings {
	return SessionSettings{
		MaxCollaborators: 50,
		AllowComments:    true,
		IdleTimeout:      30 * time.Minute,
	}
}

// =============================================================================
// Events
// =============================================================================

// EventType identifies a collaboration event delivered to hook subscribers.
type EventType int

const (
	EventSessionCreated EventType = iota
	EventCollaboratorJoined
	EventCollaboratorLeft
	EventPermissionChanged
	EventSessionArchived
	EventSessionLocked
	EventSessionUnlocked
	EventSessionPaused
	EventSessionResumed
)

var eventTypeNames = map[EventType]string{
	EventSessionCreated:     "session_created",
	EventCollaboratorJoined: "collaborator_joined",
	EventCollaboratorLeft:   "collaborator_left",
	EventPermissionChanged:  "permission_changed",
	EventSessionArchived:    "session_archived",
	EventSessionLocked:      "session_locked",
	EventSessionUnlocked:    "session_unlocked",
	EventSessionPaused:      "session_paused",
	EventSessionResumed:     "session_resumed",
}

func (e EventType) String() string {
	if name, ok := eventTypeNames[e]; ok {
		return name
	}
	return "unknown"
}

// Event is the manager's only side-channel: the real-time transport layer
// subscribes and pushes these to connected clients. Collaborator is a copy;
// handlers may not reach back into live session state through it.
type Event struct {
	Type         EventType
	SessionID    string
	DiagramID    string
	Collaborator *Collaborator
	Permission   Permission
	Timestamp    time.Time
	Data         map[string]any
}

// EventHandler is a callback for collaboration events. Handlers run on their
// own goroutines; firing order across handlers is undefined.
type EventHandler func(event *Event)

// =============================================================================
// Statistics
// =============================================================================

// SessionStatistics is the query surface for UI layers rendering presence.
type SessionStatistics struct {
	SessionID         string    `json:"session_id"`
	DiagramID         string    `json:"diagram_id"`
	Title             string    `json:"title"`
	State             string    `json:"state"`
	CollaboratorCount int       `json:"collaborator_count"`
	OnlineCount       int       `json:"online_count"`
	Editors           int       `json:"editors"`
	Commenters        int       `json:"commenters"`
	Viewers           int       `json:"viewers"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ManagerStats aggregates across every session the manager holds.
type ManagerStats struct {
	TotalSessions       int   `json:"total_sessions"`
	ActiveSessions      int   `json:"active_sessions"`
	PausedSessions      int   `json:"paused_sessions"`
	ArchivedSessions    int   `json:"archived_sessions"`
	LockedSessions      int   `json:"locked_sessions"`
	TotalCollaborators  int   `json:"total_collaborators"`
	OnlineCollaborators int   `json:"online_collaborators"`
	TotalCreated        int64 `json:"total_created"`
	TotalArchived       int64 `json:"total_archived"`
}
