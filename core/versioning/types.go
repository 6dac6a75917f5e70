package versioning

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBranchNotFound  = errors.New("branch not found")
	ErrBranchExists    = errors.New("branch already exists")
	ErrBranchProtected = errors.New("branch is protected")
	ErrBranchInUse     = errors.New("branch is checked out")
	ErrCommitNotFound  = errors.New("commit not found")
	ErrStaleHead       = errors.New("branch head moved since read")
)

// VersionControlError wraps structural misuse of a VersionControl instance:
// missing branches or commits, duplicate branch names, stale optimistic
// commits. Expected business outcomes (conflicts, permission denials) are
// never reported through this type.
type VersionControlError struct {
	Op     string
	Detail string
	Err    error
}

func (e *VersionControlError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("versioning: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("versioning: %s: %s: %v", e.Op, e.Detail, e.Err)
}

func (e *VersionControlError) Unwrap() error {
	return e.Err
}

func newVersionControlError(op, detail string, err error) *VersionControlError {
	return &VersionControlError{Op: op, Detail: detail, Err: err}
}

type ChangeType int

const (
	ChangeAdd ChangeType = iota
	ChangeModify
	ChangeDelete
	ChangeMove
)

var changeTypeNames = map[ChangeType]string{
	ChangeAdd:    "add",
	ChangeModify: "modify",
	ChangeDelete: "delete",
	ChangeMove:   "move",
}

func (t ChangeType) String() string {
	if name, ok := changeTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Snapshot is a diagram document keyed by element id. Element payloads are
// opaque JSON-like values and are treated as immutable once stored, so a
// clone copies the map, not the payloads.
type Snapshot map[string]any

func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	clone := make(Snapshot, len(s))
	for id, value := range s {
		clone[id] = value
	}
	return clone
}

// Change records one element-level edit. Immutable once created.
type Change struct {
	ID          string
	Type        ChangeType
	ElementID   string
	ElementType string
	OldData     any
	NewData     any
	Timestamp   time.Time
}

func NewChange(changeType ChangeType, elementID, elementType string, oldData, newData any) Change {
	return Change{
		ID:          uuid.New().String(),
		Type:        changeType,
		ElementID:   elementID,
		ElementType: elementType,
		OldData:     oldData,
		NewData:     newData,
		Timestamp:   time.Now(),
	}
}

// Invert returns the change that undoes this one.
func (c Change) Invert() Change {
	inverted := Change{
		ID:          uuid.New().String(),
		ElementID:   c.ElementID,
		ElementType: c.ElementType,
		Timestamp:   time.Now(),
	}

	switch c.Type {
	case ChangeAdd:
		inverted.Type = ChangeDelete
		inverted.OldData = c.NewData
	case ChangeDelete:
		inverted.Type = ChangeAdd
		inverted.NewData = c.OldData
	default:
		inverted.Type = c.Type
		inverted.OldData = c.NewData
		inverted.NewData = c.OldData
	}

	return inverted
}

// Commit is an immutable record of a set of changes applied on a branch.
type Commit struct {
	ID          string
	ParentID    string
	BranchName  string
	AuthorID    string
	AuthorName  string
	Message     string
	Changes     []Change
	Timestamp   time.Time
	DiagramHash string
	Metadata    map[string]string
}

func (c *Commit) IsRoot() bool {
	return c.ParentID == ""
}

// IsMerge reports whether this commit absorbed another branch. Merge commits
// keep a single parent; the absorbed branch is recorded in metadata.
func (c *Commit) IsMerge() bool {
	_, ok := c.Metadata[MetadataMergeFrom]
	return ok
}

func (c *Commit) Clone() *Commit {
	clone := *c
	clone.Changes = cloneChanges(c.Changes)
	clone.Metadata = cloneMetadata(c.Metadata)
	return &clone
}

const (
	MetadataMergeFrom = "merge_from"
	MetadataMergeType = "merge_type"
	MetadataReverts   = "reverts"
)

func cloneChanges(changes []Change) []Change {
	if changes == nil {
		return nil
	}
	result := make([]Change, len(changes))
	copy(result, changes)
	return result
}

func cloneMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}

// Branch is a mutable named pointer to the head commit of a line of history.
type Branch struct {
	Name        string
	HeadID      string
	CreatedFrom string
	CreatedBy   string
	CreatedAt   time.Time
	Description string
	Protected   bool
}

func (b *Branch) Clone() *Branch {
	clone := *b
	return &clone
}

// DiagramVersion is the full document snapshot recorded for one commit.
type DiagramVersion struct {
	CommitID  string
	DiagramID string
	Data      Snapshot
	Code      string
	Hash      string
	CreatedAt time.Time
}

func (v *DiagramVersion) Clone() *DiagramVersion {
	clone := *v
	clone.Data = v.Data.Clone()
	return &clone
}
