package collab

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// Collaboration Manager
// =============================================================================

// Manager is the concurrency-safe registry of collaborative sessions. One
// mutex guards the session map and every session's collaborator map; it is
// held for the full duration of one logical operation and released before
// event handlers run.
//
// Expected outcomes — missing sessions, permission denials, capacity limits —
// are reported as false/nil returns, never as errors.
type Manager struct {
	mu           sync.Mutex
	sessions     map[string]*CollaborativeSession
	userSessions map[string]map[string]struct{}

	maxSessions             int
	maxCollaboratorsDefault int

	handlersMu sync.RWMutex
	handlers   []EventHandler

	closed atomic.Bool
	logger *slog.Logger

	totalCreated  int64
	totalArchived int64
}

// ManagerConfig configures the collaboration manager.
type ManagerConfig struct {
	// MaxSessions limits concurrently held sessions (default: 1000).
	MaxSessions int

	// MaxCollaborators is the default per-session member cap applied when
	// session settings leave it unset (default: 50).
	MaxCollaborators int

	Logger *slog.Logger
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxSessions:      1000,
		MaxCollaborators: 50,
	}
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	if cfg.MaxCollaborators <= 0 {
		cfg.MaxCollaborators = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		sessions:                make(map[string]*CollaborativeSession),
		userSessions:            make(map[string]map[string]struct{}),
		maxSessions:             cfg.MaxSessions,
		maxCollaboratorsDefault: cfg.MaxCollaborators,
		handlers:                make([]EventHandler, 0),
		logger:                  cfg.Logger,
	}
}

// =============================================================================
// Session Lifecycle
// =============================================================================

// CreateSession allocates a session with the owner as its first
// collaborator, online and holding owner permission. Returns nil only when
// the manager is closed or at its session cap.
func (m *Manager) CreateSession(diagramID, diagramType, title, ownerID, ownerEmail, ownerName string, settings *SessionSettings) *CollaborativeSession {
	if m.closed.Load() {
		return nil
	}

	effective := DefaultSessionSettings()
	effective.MaxCollaborators = m.maxCollaboratorsDefault
	if settings != nil {
		effective = *settings
	}

	m.mu.Lock()
	if len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		m.logger.Warn("session cap reached", "max_sessions", m.maxSessions)
		return nil
	}

	session := newSession(diagramID, diagramType, title, ownerID, ownerEmail, ownerName, effective)
	m.sessions[session.SessionID] = session
	m.indexUserSession(ownerID, session.SessionID)
	atomic.AddInt64(&m.totalCreated, 1)

	snapshot := session.Clone()
	owner := snapshot.Collaborators[ownerID]
	m.mu.Unlock()

	m.emitEvent(&Event{
		Type:         EventSessionCreated,
		SessionID:    snapshot.SessionID,
		DiagramID:    snapshot.DiagramID,
		Collaborator: owner,
		Timestamp:    time.Now(),
		Data:         map[string]any{"title": snapshot.Title, "diagram_type": snapshot.DiagramType},
	})

	return snapshot
}

// ArchiveSession retires a session. Only the owner may archive; every
// collaborator is forced offline as a side effect. Archived sessions are
// kept for history queries, never deleted.
func (m *Manager) ArchiveSession(sessionID, archivedBy string) bool {
	if m.closed.Load() {
		return false
	}

	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok || archivedBy != session.OwnerID || session.State == StateArchived {
		m.mu.Unlock()
		return false
	}

	session.State = StateArchived
	for _, collaborator := range session.Collaborators {
		collaborator.Online = false
	}
	session.touch()
	atomic.AddInt64(&m.totalArchived, 1)

	diagramID := session.DiagramID
	m.mu.Unlock()

	m.emitEvent(&Event{
		Type:      EventSessionArchived,
		SessionID: sessionID,
		DiagramID: diagramID,
		Timestamp: time.Now(),
	})
	return true
}

// LockSession freezes membership changes until the owner unlocks.
func (m *Manager) LockSession(sessionID, lockedBy string) bool {
	return m.transitionState(sessionID, lockedBy, StateActive, StateLocked, EventSessionLocked)
}

func (m *Manager) UnlockSession(sessionID, unlockedBy string) bool {
	return m.transitionState(sessionID, unlockedBy, StateLocked, StateActive, EventSessionUnlocked)
}

func (m *Manager) PauseSession(sessionID, pausedBy string) bool {
	return m.transitionState(sessionID, pausedBy, StateActive, StatePaused, EventSessionPaused)
}

func (m *Manager) ResumeSession(sessionID, resumedBy string) bool {
	return m.transitionState(sessionID, resumedBy, StatePaused, StateActive, EventSessionResumed)
}

// transitionState performs an owner-only state flip from one specific state
// to another.
func (m *Manager) transitionState(sessionID, byUser string, from, to SessionState, eventType EventType) bool {
	if m.closed.Load() {
		return false
	}

	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok || byUser != session.OwnerID || session.State != from {
		m.mu.Unlock()
		return false
	}
	session.State = to
	session.touch()
	diagramID := session.DiagramID
	m.mu.Unlock()

	m.emitEvent(&Event{
		Type:      eventType,
		SessionID: sessionID,
		DiagramID: diagramID,
		Timestamp: time.Now(),
	})
	return true
}

// =============================================================================
// Collaborators
// =============================================================================

// AddCollaborator joins a user to a session. Fails when the session is
// missing, archived or locked, when an inviter is supplied without edit
// permission, when the member cap is hit, or when the target is the owner
// (the owner entry is fixed at creation). Owner permission is never
// grantable through admission; the only owner entry is the one created with
// the session.
func (m *Manager) AddCollaborator(sessionID, userID, email, name string, permission Permission, invitedBy string) bool {
	if m.closed.Load() {
		return false
	}
	if permission == PermissionOwner {
		return false
	}

	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok || session.State == StateArchived || session.State == StateLocked {
		m.mu.Unlock()
		return false
	}
	if invitedBy != "" && !session.CanEdit(invitedBy) {
		m.mu.Unlock()
		return false
	}
	if userID == session.OwnerID {
		m.mu.Unlock()
		return false
	}
	if _, rejoining := session.Collaborators[userID]; !rejoining && m.atCapacity(session) {
		m.mu.Unlock()
		return false
	}

	collaborator := newCollaborator(userID, email, name, permission)
	session.Collaborators[userID] = collaborator
	m.indexUserSession(userID, sessionID)
	session.touch()

	snapshot := collaborator.Clone()
	diagramID := session.DiagramID
	m.mu.Unlock()

	m.emitEvent(&Event{
		Type:         EventCollaboratorJoined,
		SessionID:    sessionID,
		DiagramID:    diagramID,
		Collaborator: snapshot,
		Permission:   permission,
		Timestamp:    time.Now(),
	})
	return true
}

func (m *Manager) atCapacity(session *CollaborativeSession) bool {
	limit := session.Settings.MaxCollaborators
	if limit <= 0 {
		limit = m.maxCollaboratorsDefault
	}
	return len(session.Collaborators) >= limit
}

// RemoveCollaborator detaches a user. The owner can never be removed. A
// remover other than the user themselves needs edit permission.
func (m *Manager) RemoveCollaborator(sessionID, userID, removedBy string) bool {
	if m.closed.Load() {
		return false
	}

	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok || session.State == StateArchived || session.State == StateLocked {
		m.mu.Unlock()
		return false
	}
	collaborator, ok := session.Collaborators[userID]
	if !ok || userID == session.OwnerID {
		m.mu.Unlock()
		return false
	}
	if removedBy != "" && removedBy != userID && !session.CanEdit(removedBy) {
		m.mu.Unlock()
		return false
	}

	delete(session.Collaborators, userID)
	m.unindexUserSession(userID, sessionID)
	session.touch()

	snapshot := collaborator.Clone()
	diagramID := session.DiagramID
	m.mu.Unlock()

	m.emitEvent(&Event{
		Type:         EventCollaboratorLeft,
		SessionID:    sessionID,
		DiagramID:    diagramID,
		Collaborator: snapshot,
		Timestamp:    time.Now(),
	})
	return true
}

// UpdateCollaboratorStatus records presence and cursor movement. Always
// bumps LastActive. Nil cursor/selection leave the previous values alone.
func (m *Manager) UpdateCollaboratorStatus(sessionID, userID string, online bool, cursor *CursorPosition, selection []string) bool {
	if m.closed.Load() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	collaborator, ok := session.Collaborators[userID]
	if !ok {
		return false
	}

	collaborator.Online = online
	collaborator.LastActive = time.Now()
	if cursor != nil {
		position := *cursor
		collaborator.Cursor = &position
	}
	if selection != nil {
		collaborator.Selection = make([]string, len(selection))
		copy(collaborator.Selection, selection)
	}
	session.touch()
	return true
}

// UpdatePermission changes a collaborator's access level. Only the session
// owner may do this, the owner's own entry is immutable, and owner
// permission cannot be granted to a second user.
func (m *Manager) UpdatePermission(sessionID, userID string, newPermission Permission, updatedBy string) bool {
	if m.closed.Load() {
		return false
	}

	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok || session.State == StateArchived || session.State == StateLocked {
		m.mu.Unlock()
		return false
	}
	if updatedBy != session.OwnerID || userID == session.OwnerID || newPermission == PermissionOwner {
		m.mu.Unlock()
		return false
	}
	collaborator, ok := session.Collaborators[userID]
	if !ok {
		m.mu.Unlock()
		return false
	}

	collaborator.Permission = newPermission
	session.touch()

	snapshot := collaborator.Clone()
	diagramID := session.DiagramID
	m.mu.Unlock()

	m.emitEvent(&Event{
		Type:         EventPermissionChanged,
		SessionID:    sessionID,
		DiagramID:    diagramID,
		Collaborator: snapshot,
		Permission:   newPermission,
		Timestamp:    time.Now(),
	})
	return true
}

// =============================================================================
// Queries
// =============================================================================

// GetSession returns a deep copy; mutating it has no effect on live state.
func (m *Manager) GetSession(sessionID string) (*CollaborativeSession, bool) {
	if m.closed.Load() {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return session.Clone(), true
}

// GetUserSessions lists the ids of every session the user belongs to,
// sorted for deterministic output.
func (m *Manager) GetUserSessions(userID string) []string {
	if m.closed.Load() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.userSessions[userID]))
	for sessionID := range m.userSessions[userID] {
		ids = append(ids, sessionID)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) GetSessionStatistics(sessionID string) (*SessionStatistics, bool) {
	if m.closed.Load() {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return session.statistics(), true
}

func (m *Manager) SessionCount() int {
	if m.closed.Load() {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) Stats() ManagerStats {
	if m.closed.Load() {
		return ManagerStats{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stats := ManagerStats{
		TotalSessions: len(m.sessions),
		TotalCreated:  atomic.LoadInt64(&m.totalCreated),
		TotalArchived: atomic.LoadInt64(&m.totalArchived),
	}
	for _, session := range m.sessions {
		switch session.State {
		case StateActive:
			stats.ActiveSessions++
		case StatePaused:
			stats.PausedSessions++
		case StateArchived:
			stats.ArchivedSessions++
		case StateLocked:
			stats.LockedSessions++
		}
		stats.TotalCollaborators += len(session.Collaborators)
		stats.OnlineCollaborators += session.OnlineCount()
	}
	return stats
}

// =============================================================================
// Event Handling
// =============================================================================

// Subscribe registers an event handler and returns its unsubscribe func.
func (m *Manager) Subscribe(handler EventHandler) func() {
	m.handlersMu.Lock()
	m.handlers = append(m.handlers, handler)
	index := len(m.handlers) - 1
	m.handlersMu.Unlock()

	return func() {
		m.handlersMu.Lock()
		defer m.handlersMu.Unlock()
		if index < len(m.handlers) {
			m.handlers[index] = nil
		}
	}
}

// emitEvent fans an event out to all handlers on their own goroutines. The
// session mutex is never held here, so handlers may call back into the
// manager.
func (m *Manager) emitEvent(event *Event) {
	m.handlersMu.RLock()
	handlers := make([]EventHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.handlersMu.RUnlock()

	for _, handler := range handlers {
		if handler != nil {
			go handler(event)
		}
	}
}

// =============================================================================
// Shutdown
// =============================================================================

// Close stops the manager. Subsequent calls on any method report the
// business-outcome failure value for their signature.
func (m *Manager) Close() {
	m.closed.Store(true)
}

// =============================================================================
// User Index
// =============================================================================

func (m *Manager) indexUserSession(userID, sessionID string) {
	if m.userSessions[userID] == nil {
		m.userSessions[userID] = make(map[string]struct{})
	}
	m.userSessions[userID][sessionID] = struct{}{}
}

func (m *Manager) unindexUserSession(userID, sessionID string) {
	sessions, ok := m.userSessions[userID]
	if !ok {
		return
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(m.userSessions, userID)
	}
}
