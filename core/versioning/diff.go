package versioning

import (
	"fmt"
	"reflect"
	"sort"
)

type DiffSummary struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Deleted  int `json:"deleted"`
	Total    int `json:"total"`
}

func (s DiffSummary) String() string {
	return fmt.Sprintf("%d added, %d modified, %d deleted", s.Added, s.Modified, s.Deleted)
}

// DiagramDiff is derived from two snapshots and never stored. Summary is
// recomputed from Changes, not settable independently.
type DiagramDiff struct {
	Changes []Change
	Summary DiffSummary
}

type DiffEngine struct{}

func NewDiffEngine() *DiffEngine {
	return &DiffEngine{}
}

// ComputeDiff classifies every element-level difference between two
// snapshots. Element ids are visited in sorted order so repeated calls on
// the same inputs produce identical change slices.
func (e *DiffEngine) ComputeDiff(base, target Snapshot) *DiagramDiff {
	changes := make([]Change, 0)

	for _, id := range sortedElementIDs(target) {
		changes = e.appendTargetChange(changes, base, target, id)
	}
	for _, id := range sortedElementIDs(base) {
		changes = e.appendDeletion(changes, base, target, id)
	}

	return &DiagramDiff{
		Changes: changes,
		Summary: summarizeChanges(changes),
	}
}

func (e *DiffEngine) appendTargetChange(changes []Change, base, target Snapshot, id string) []Change {
	newValue := target[id]
	oldValue, existed := base[id]

	if !existed {
		return append(changes, NewChange(ChangeAdd, id, elementType(newValue), nil, newValue))
	}
	if !structurallyEqual(oldValue, newValue) {
		return append(changes, NewChange(ChangeModify, id, elementType(newValue), oldValue, newValue))
	}
	return changes
}

func (e *DiffEngine) appendDeletion(changes []Change, base, target Snapshot, id string) []Change {
	if _, exists := target[id]; exists {
		return changes
	}
	oldValue := base[id]
	return append(changes, NewChange(ChangeDelete, id, elementType(oldValue), oldValue, nil))
}

func sortedElementIDs(s Snapshot) []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func structurallyEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// elementType extracts the declared kind of a diagram element payload when
// the model layer supplies one.
func elementType(value any) string {
	payload, ok := value.(map[string]any)
	if !ok {
		return ""
	}
	if kind, ok := payload["type"].(string); ok {
		return kind
	}
	return ""
}

func summarizeChanges(changes []Change) DiffSummary {
	var summary DiffSummary
	for _, change := range changes {
		countChange(&summary, change.Type)
	}
	summary.Total = summary.Added + summary.Modified + summary.Deleted
	return summary
}

func countChange(summary *DiffSummary, changeType ChangeType) {
	switch changeType {
	case ChangeAdd:
		summary.Added++
	case ChangeModify, ChangeMove:
		summary.Modified++
	case ChangeDelete:
		summary.Deleted++
	}
}
