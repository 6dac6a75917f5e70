package collab

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Collaborator
// =============================================================================

// CursorPosition is a collaborator's pointer location within the diagram.
type CursorPosition struct {
	ElementID string  `json:"element_id,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// Collaborator is one user attached to a session. Owned by exactly one
// session; all mutation goes through the manager, which holds the lock.
type Collaborator struct {
	UserID     string
	Email      string
	Name       string
	Permission Permission
	JoinedAt   time.Time
	LastActive time.Time
	Online     bool
	Cursor     *CursorPosition
	Selection  []string
}

func newCollaborator(userID, email, name string, permission Permission) *Collaborator {
	now := time.Now()
	return &Collaborator{
		UserID:     userID,
		Email:      email,
		Name:       name,
		Permission: permission,
		JoinedAt:   now,
		LastActive: now,
		Online:     true,
	}
}

func (c *Collaborator) Clone() *Collaborator {
	clone := *c
	if c.Cursor != nil {
		cursor := *c.Cursor
		clone.Cursor = &cursor
	}
	if c.Selection != nil {
		clone.Selection = make([]string, len(c.Selection))
		copy(clone.Selection, c.Selection)
	}
	return &clone
}

// =============================================================================
// Collaborative Session
// =============================================================================

// CollaborativeSession is the live context in which a set of collaborators
// edits one diagram. The owner always has a collaborator entry with owner
// permission; that entry can never be removed or demoted.
type CollaborativeSession struct {
	SessionID     string
	DiagramID     string
	DiagramType   string
	Title         string
	OwnerID       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	State         SessionState
	Collaborators map[string]*Collaborator
	Settings      SessionSettings
	Metadata      map[string]any
}

func newSession(diagramID, diagramType, title, ownerID, ownerEmail, ownerName string, settings SessionSettings) *CollaborativeSession {
	now := time.Now()
	session := &CollaborativeSession{
		SessionID:     uuid.New().String(),
		DiagramID:     diagramID,
		DiagramType:   diagramType,
		Title:         title,
		OwnerID:       ownerID,
		CreatedAt:     now,
		UpdatedAt:     now,
		State:         StateActive,
		Collaborators: make(map[string]*Collaborator),
		Settings:      settings,
		Metadata:      make(map[string]any),
	}
	session.Collaborators[ownerID] = newCollaborator(ownerID, ownerEmail, ownerName, PermissionOwner)
	return session
}

func (s *CollaborativeSession) Clone() *CollaborativeSession {
	clone := *s
	clone.Collaborators = make(map[string]*Collaborator, len(s.Collaborators))
	for userID, collaborator := range s.Collaborators {
		clone.Collaborators[userID] = collaborator.Clone()
	}
	clone.Metadata = make(map[string]any, len(s.Metadata))
	for key, value := range s.Metadata {
		clone.Metadata[key] = value
	}
	return &clone
}

// Collaborator looks up a member by user id.
func (s *CollaborativeSession) Collaborator(userID string) (*Collaborator, bool) {
	collaborator, ok := s.Collaborators[userID]
	return collaborator, ok
}

// CanEdit reports whether the user may mutate the session's membership or
// document.
func (s *CollaborativeSession) CanEdit(userID string) bool {
	collaborator, ok := s.Collaborators[userID]
	return ok && collaborator.Permission.CanEdit()
}

func (s *CollaborativeSession) OnlineCount() int {
	count := 0
	for _, collaborator := range s.Collaborators {
		if collaborator.Online {
			count++
		}
	}
	return count
}

func (s *CollaborativeSession) touch() {
	s.UpdatedAt = time.Now()
}

// statistics builds the read-only presence summary. Callers hold the
// manager lock.
func (s *CollaborativeSession) statistics() *SessionStatistics {
	stats := &SessionStatistics{
		SessionID:         s.SessionID,
		DiagramID:         s.DiagramID,
		Title:             s.Title,
		State:             s.State.String(),
		CollaboratorCount: len(s.Collaborators),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	for _, collaborator := range s.Collaborators {
		if collaborator.Online {
			stats.OnlineCount++
		}
		switch collaborator.Permission {
		case PermissionEditor:
			stats.Editors++
		case PermissionCommenter:
			stats.Commenters++
		case PermissionViewer:
			stats.Viewers++
		}
	}
	return stats
}
