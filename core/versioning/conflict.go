package versioning

import (
	"sort"
)

type ConflictType int

const (
	ConflictModifyModify ConflictType = iota
	ConflictDeleteModify
	ConflictModifyDelete
	ConflictDeleteDelete
)

var conflictTypeNames = map[ConflictType]string{
	ConflictModifyModify: "modify_modify",
	ConflictDeleteModify: "delete_modify",
	ConflictModifyDelete: "modify_delete",
	ConflictDeleteDelete: "delete_delete",
}

func (t ConflictType) String() string {
	if name, ok := conflictTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

type MergeStrategy int

const (
	MergeStrategyAuto MergeStrategy = iota
	MergeStrategyPreferSource
	MergeStrategyPreferTarget
	MergeStrategyManual
)

var mergeStrategyNames = map[MergeStrategy]string{
	MergeStrategyAuto:         "auto",
	MergeStrategyPreferSource: "prefer_source",
	MergeStrategyPreferTarget: "prefer_target",
	MergeStrategyManual:       "manual",
}

func (s MergeStrategy) String() string {
	if name, ok := mergeStrategyNames[s]; ok {
		return name
	}
	return "unknown"
}

type ResolutionType int

const (
	ResolutionKeepSource ResolutionType = iota
	ResolutionKeepTarget
	ResolutionMerge
)

var resolutionTypeNames = map[ResolutionType]string{
	ResolutionKeepSource: "keep_source",
	ResolutionKeepTarget: "keep_target",
	ResolutionMerge:      "merge",
}

func (t ResolutionType) String() string {
	if name, ok := resolutionTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MergeConflict pairs two changes from divergent branches that touch the
// same element since their common ancestor. Transient: produced during a
// merge attempt and either resolved immediately or returned to the caller.
type MergeConflict struct {
	ElementID    string
	Type         ConflictType
	SourceChange Change
	TargetChange Change
	Suggested    *ConflictResolution
}

// ConflictResolution settles one conflicting element. A nil ResolvedValue
// means the element is removed from the merged snapshot.
type ConflictResolution struct {
	ElementID     string
	Type          ResolutionType
	ResolvedValue any
}

type ConflictResolver interface {
	DetectConflicts(sourceChanges, targetChanges []Change) []MergeConflict
	ResolveConflicts(conflicts []MergeConflict, strategy MergeStrategy, manual map[string]ConflictResolution) []ConflictResolution
}

type DefaultConflictResolver struct{}

func NewConflictResolver() *DefaultConflictResolver {
	return &DefaultConflictResolver{}
}

// DetectConflicts flags every element edited on both sides where the pair of
// change kinds is contested. Pairs involving an add (or a bare move) are not
// conflicts at this layer: concurrent adds of the same element id cannot
// come from a shared ancestor. Results are ordered by element id.
func (r *DefaultConflictResolver) DetectConflicts(sourceChanges, targetChanges []Change) []MergeConflict {
	sourceByElement := latestChangeByElement(sourceChanges)
	targetByElement := latestChangeByElement(targetChanges)

	conflicts := make([]MergeConflict, 0)
	for _, elementID := range sortedKeys(sourceByElement) {
		targetChange, contested := targetByElement[elementID]
		if !contested {
			continue
		}
		conflict, ok := buildConflict(elementID, sourceByElement[elementID], targetChange)
		if ok {
			conflicts = append(conflicts, conflict)
		}
	}
	return conflicts
}

// latestChangeByElement keeps the final change per element: within one
// branch's span, later edits supersede earlier ones.
func latestChangeByElement(changes []Change) map[string]Change {
	byElement := make(map[string]Change, len(changes))
	for _, change := range changes {
		byElement[change.ElementID] = change
	}
	return byElement
}

func sortedKeys(byElement map[string]Change) []string {
	keys := make([]string, 0, len(byElement))
	for key := range byElement {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func buildConflict(elementID string, source, target Change) (MergeConflict, bool) {
	conflictType, contested := classifyConflict(source.Type, target.Type)
	if !contested {
		return MergeConflict{}, false
	}

	conflict := MergeConflict{
		ElementID:    elementID,
		Type:         conflictType,
		SourceChange: source,
		TargetChange: target,
	}
	conflict.Suggested = suggestResolution(conflict)
	return conflict, true
}

func classifyConflict(source, target ChangeType) (ConflictType, bool) {
	switch {
	case source == ChangeModify && target == ChangeModify:
		return ConflictModifyModify, true
	case source == ChangeDelete && target == ChangeModify:
		return ConflictDeleteModify, true
	case source == ChangeModify && target == ChangeDelete:
		return ConflictModifyDelete, true
	case source == ChangeDelete && target == ChangeDelete:
		return ConflictDeleteDelete, true
	default:
		return 0, false
	}
}

// suggestResolution proposes the last-writer-on-target outcome for
// modify/modify conflicts. Other conflict kinds have no safe suggestion.
func suggestResolution(conflict MergeConflict) *ConflictResolution {
	if conflict.Type != ConflictModifyModify {
		return nil
	}
	return &ConflictResolution{
		ElementID:     conflict.ElementID,
		Type:          ResolutionKeepTarget,
		ResolvedValue: conflict.TargetChange.NewData,
	}
}

// ResolveConflicts produces resolutions for as many conflicts as the
// strategy covers. Manual resolutions win per element. Under the auto
// strategy only modify/modify conflicts resolve (target side wins); the
// rest are left out of the returned slice and the caller must fall back to
// manual resolution. The returned slice may therefore be shorter than the
// conflict slice.
func (r *DefaultConflictResolver) ResolveConflicts(conflicts []MergeConflict, strategy MergeStrategy, manual map[string]ConflictResolution) []ConflictResolution {
	resolutions := make([]ConflictResolution, 0, len(conflicts))
	for _, conflict := range conflicts {
		resolution, ok := r.resolveOne(conflict, strategy, manual)
		if ok {
			resolutions = append(resolutions, resolution)
		}
	}
	return resolutions
}

func (r *DefaultConflictResolver) resolveOne(conflict MergeConflict, strategy MergeStrategy, manual map[string]ConflictResolution) (ConflictResolution, bool) {
	if resolution, ok := manual[conflict.ElementID]; ok {
		return resolution, true
	}

	switch strategy {
	case MergeStrategyPreferSource:
		return ConflictResolution{
			ElementID:     conflict.ElementID,
			Type:          ResolutionKeepSource,
			ResolvedValue: conflict.SourceChange.NewData,
		}, true
	case MergeStrategyPreferTarget:
		return ConflictResolution{
			ElementID:     conflict.ElementID,
			Type:          ResolutionKeepTarget,
			ResolvedValue: conflict.TargetChange.NewData,
		}, true
	case MergeStrategyAuto:
		if conflict.Suggested != nil {
			return *conflict.Suggested, true
		}
		return ConflictResolution{}, false
	default:
		return ConflictResolution{}, false
	}
}
