package activity

import (
	"time"
)

// Type classifies one audit-trail entry.
type Type int

const (
	TypeCommit Type = iota
	TypeBranchCreated
	TypeMerge
	TypeJoin
	TypeLeave
	TypePermissionChanged
	TypeComment
	TypeEdit
	TypeSessionCreated
	TypeSessionArchived
)

var typeNames = map[Type]string{
	TypeCommit:            "commit",
	TypeBranchCreated:     "branch_created",
	TypeMerge:             "merge",
	TypeJoin:              "join",
	TypeLeave:             "leave",
	TypePermissionChanged: "permission_changed",
	TypeComment:           "comment",
	TypeEdit:              "edit",
	TypeSessionCreated:    "session_created",
	TypeSessionArchived:   "session_archived",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Entry is one recorded activity. Immutable once recorded.
type Entry struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	DiagramID string         `json:"diagram_id"`
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name"`
	Type      Type           `json:"type"`
	ElementID string         `json:"element_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// LoggerStats summarizes the logger's retained entries.
type LoggerStats struct {
	TotalEntries int64            `json:"total_entries"`
	Retained     int              `json:"retained"`
	Sessions     int              `json:"sessions"`
	ByType       map[string]int64 `json:"by_type"`
}
