package versioning

// MergeOutcome reports everything a merge attempt produced: the merged
// snapshot, the conflicts found, the resolutions that were applied, and the
// conflicts nothing covered. Unresolved elements keep their base value.
type MergeOutcome struct {
	Merged      Snapshot
	Conflicts   []MergeConflict
	Resolutions []ConflictResolution
	Unresolved  []MergeConflict
}

func (o *MergeOutcome) HasConflicts() bool {
	return len(o.Conflicts) > 0
}

func (o *MergeOutcome) FullyResolved() bool {
	return len(o.Unresolved) == 0
}

type MergeResolver interface {
	MergeChanges(base Snapshot, sourceChanges, targetChanges []Change, strategy MergeStrategy, manual map[string]ConflictResolution) *MergeOutcome
}

type DefaultMergeResolver struct {
	resolver ConflictResolver
}

func NewMergeResolver(resolver ConflictResolver) *DefaultMergeResolver {
	if resolver == nil {
		resolver = NewConflictResolver()
	}
	return &DefaultMergeResolver{resolver: resolver}
}

// MergeChanges applies both sides' changes to the base snapshot. With no
// conflicts, source changes apply first, then target changes. With
// conflicts, non-conflicting changes from both sides still apply; the
// contested elements take their resolution instead, and conflicts no
// resolution covered leave the base value untouched.
func (m *DefaultMergeResolver) MergeChanges(base Snapshot, sourceChanges, targetChanges []Change, strategy MergeStrategy, manual map[string]ConflictResolution) *MergeOutcome {
	conflicts := m.resolver.DetectConflicts(sourceChanges, targetChanges)
	merged := base.Clone()

	if len(conflicts) == 0 {
		applyChanges(merged, sourceChanges)
		applyChanges(merged, targetChanges)
		return &MergeOutcome{Merged: merged}
	}

	contested := conflictedElements(conflicts)
	applyUncontested(merged, sourceChanges, contested)
	applyUncontested(merged, targetChanges, contested)

	resolutions := m.resolver.ResolveConflicts(conflicts, strategy, manual)
	applyResolutions(merged, resolutions)

	return &MergeOutcome{
		Merged:      merged,
		Conflicts:   conflicts,
		Resolutions: resolutions,
		Unresolved:  unresolvedConflicts(conflicts, resolutions),
	}
}

func conflictedElements(conflicts []MergeConflict) map[string]struct{} {
	contested := make(map[string]struct{}, len(conflicts))
	for _, conflict := range conflicts {
		contested[conflict.ElementID] = struct{}{}
	}
	return contested
}

func applyChanges(snapshot Snapshot, changes []Change) {
	for _, change := range changes {
		applyChange(snapshot, change)
	}
}

func applyUncontested(snapshot Snapshot, changes []Change, contested map[string]struct{}) {
	for _, change := range changes {
		if _, ok := contested[change.ElementID]; ok {
			continue
		}
		applyChange(snapshot, change)
	}
}

func applyChange(snapshot Snapshot, change Change) {
	switch change.Type {
	case ChangeAdd, ChangeModify, ChangeMove:
		snapshot[change.ElementID] = change.NewData
	case ChangeDelete:
		delete(snapshot, change.ElementID)
	}
}

func applyResolutions(snapshot Snapshot, resolutions []ConflictResolution) {
	for _, resolution := range resolutions {
		if resolution.ResolvedValue == nil {
			delete(snapshot, resolution.ElementID)
			continue
		}
		snapshot[resolution.ElementID] = resolution.ResolvedValue
	}
}

func unresolvedConflicts(conflicts []MergeConflict, resolutions []ConflictResolution) []MergeConflict {
	resolved := make(map[string]struct{}, len(resolutions))
	for _, resolution := range resolutions {
		resolved[resolution.ElementID] = struct{}{}
	}

	var unresolved []MergeConflict
	for _, conflict := range conflicts {
		if _, ok := resolved[conflict.ElementID]; !ok {
			unresolved = append(unresolved, conflict)
		}
	}
	return unresolved
}
