package activity

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

const defaultMaxPerSession = 1000

// Logger keeps a bounded, per-session audit trail of collaboration
// activity. Storage is a ring per session: once the cap is hit the oldest
// entries fall off.
type Logger struct {
	mu        sync.RWMutex
	bySession map[string][]Entry

	maxPerSession int
	logger        *slog.Logger

	totalEntries int64
	byType       map[Type]int64
}

type LoggerConfig struct {
	// MaxPerSession caps retained entries per session (default: 1000).
	MaxPerSession int

	Logger *slog.Logger
}

func NewLogger(cfg LoggerConfig) *Logger {
	if cfg.MaxPerSession <= 0 {
		cfg.MaxPerSession = defaultMaxPerSession
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Logger{
		bySession:     make(map[string][]Entry),
		maxPerSession: cfg.MaxPerSession,
		logger:        cfg.Logger,
		byType:        make(map[Type]int64),
	}
}

// Record stores an entry, assigning its id and timestamp when unset, and
// returns the stored value.
func (l *Logger) Record(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := append(l.bySession[entry.SessionID], entry)
	if len(entries) > l.maxPerSession {
		dropped := len(entries) - l.maxPerSession
		entries = entries[dropped:]
		l.logger.Debug("activity entries dropped",
			"session", entry.SessionID,
			"dropped", dropped)
	}
	l.bySession[entry.SessionID] = entries

	l.totalEntries++
	l.byType[entry.Type]++
	return entry
}

// SessionActivity returns a session's entries, newest first.
func (l *Logger) SessionActivity(sessionID string, limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return newestFirst(l.bySession[sessionID], limit)
}

// UserActivity returns a user's entries across all sessions, newest first.
func (l *Logger) UserActivity(userID string, limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var matched []Entry
	for _, entries := range l.bySession {
		for _, entry := range entries {
			if entry.UserID == userID {
				matched = append(matched, entry)
			}
		}
	}
	sortByTimestamp(matched)
	return newestFirst(matched, limit)
}

// Filter narrows a Query. Pattern fields take glob syntax ("node-*",
// "flow?.edge.*") and match entry element and diagram ids respectively.
type Filter struct {
	SessionID      string
	UserID         string
	Types          []Type
	ElementPattern string
	DiagramPattern string
	Since          *time.Time
	Until          *time.Time
	Limit          int
}

// Query returns entries matching every set filter field, newest first. A
// malformed glob pattern is caller error and is returned as such.
func (l *Logger) Query(filter Filter) ([]Entry, error) {
	matcher, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var matched []Entry
	for sessionID, entries := range l.bySession {
		if filter.SessionID != "" && filter.SessionID != sessionID {
			continue
		}
		for _, entry := range entries {
			if matcher.matches(entry) {
				matched = append(matched, entry)
			}
		}
	}
	sortByTimestamp(matched)
	return newestFirst(matched, filter.Limit), nil
}

func (l *Logger) Stats() LoggerStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := LoggerStats{
		TotalEntries: l.totalEntries,
		Sessions:     len(l.bySession),
		ByType:       make(map[string]int64, len(l.byType)),
	}
	for _, entries := range l.bySession {
		stats.Retained += len(entries)
	}
	for entryType, count := range l.byType {
		stats.ByType[entryType.String()] = count
	}
	return stats
}

// =============================================================================
// Filtering
// =============================================================================

type filterMatcher struct {
	filter  Filter
	types   map[Type]struct{}
	element glob.Glob
	diagram glob.Glob
}

func compileFilter(filter Filter) (*filterMatcher, error) {
	matcher := &filterMatcher{filter: filter}

	if len(filter.Types) > 0 {
		matcher.types = make(map[Type]struct{}, len(filter.Types))
		for _, entryType := range filter.Types {
			matcher.types[entryType] = struct{}{}
		}
	}

	var err error
	if filter.ElementPattern != "" {
		if matcher.element, err = glob.Compile(filter.ElementPattern); err != nil {
			return nil, err
		}
	}
	if filter.DiagramPattern != "" {
		if matcher.diagram, err = glob.Compile(filter.DiagramPattern); err != nil {
			return nil, err
		}
	}
	return matcher, nil
}

func (m *filterMatcher) matches(entry Entry) bool {
	if m.filter.UserID != "" && entry.UserID != m.filter.UserID {
		return false
	}
	if m.types != nil {
		if _, ok := m.types[entry.Type]; !ok {
			return false
		}
	}
	if m.element != nil && !m.element.Match(entry.ElementID) {
		return false
	}
	if m.diagram != nil && !m.diagram.Match(entry.DiagramID) {
		return false
	}
	if m.filter.Since != nil && entry.Timestamp.Before(*m.filter.Since) {
		return false
	}
	if m.filter.Until != nil && entry.Timestamp.After(*m.filter.Until) {
		return false
	}
	return true
}

// =============================================================================
// Ordering
// =============================================================================

func sortByTimestamp(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}

// newestFirst reverses chronological order and applies the limit. A zero or
// negative limit returns everything.
func newestFirst(entries []Entry, limit int) []Entry {
	result := make([]Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		result = append(result, entries[i])
	}
	return result
}
