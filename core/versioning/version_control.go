package versioning

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	MainBranch = "main"

	defaultHistoryLimit  = 100
	defaultDiffCacheSize = 128
)

// MergeStatus is the outcome of a merge attempt. A conflicted merge is a
// successful detection, not a failure: the caller resolves and retries.
type MergeStatus int

const (
	MergeStatusSuccess MergeStatus = iota
	MergeStatusConflict
)

var mergeStatusNames = map[MergeStatus]string{
	MergeStatusSuccess:  "success",
	MergeStatusConflict: "conflict",
}

func (s MergeStatus) String() string {
	if name, ok := mergeStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

type MergeResult struct {
	Status        MergeStatus
	SourceBranch  string
	TargetBranch  string
	AncestorID    string
	MergeCommitID string
	Conflicts     []MergeConflict
	MergedChanges []Change
}

type VersionControlStats struct {
	TotalCommits     int64
	TotalBranches    int64
	TotalMerges      int64
	ConflictedMerges int64
}

type VersionControlConfig struct {
	DiagramID string
	CreatedBy string

	// HistoryLimit caps GetCommitHistory when the caller passes no limit.
	HistoryLimit int

	// DiffCacheSize bounds the commit-pair diff cache.
	DiffCacheSize int

	Resolver ConflictResolver
	Merger   MergeResolver
	Logger   *slog.Logger
}

// VersionControl is the commit graph for a single diagram. All operations
// take the instance mutex, so one instance is safe for concurrent callers;
// a commit can additionally pin the head it read via
// CommitInput.ExpectedHead.
type VersionControl struct {
	mu sync.Mutex

	diagramID     string
	currentBranch string
	commits       map[string]*Commit
	branches      map[string]*Branch
	versions      map[string]*DiagramVersion

	resolver ConflictResolver
	merger   MergeResolver

	// Commits and versions are immutable, so cached diffs never go stale.
	diffCache *lru.Cache[string, []Change]

	historyLimit int
	logger       *slog.Logger
	stats        VersionControlStats
}

func NewVersionControl(cfg VersionControlConfig) *VersionControl {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.DiffCacheSize <= 0 {
		cfg.DiffCacheSize = defaultDiffCacheSize
	}
	if cfg.Resolver == nil {
		cfg.Resolver = NewConflictResolver()
	}
	if cfg.Merger == nil {
		cfg.Merger = NewMergeResolver(cfg.Resolver)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	diffCache, _ := lru.New[string, []Change](cfg.DiffCacheSize)

	vc := &VersionControl{
		diagramID:     cfg.DiagramID,
		currentBranch: MainBranch,
		commits:       make(map[string]*Commit),
		branches:      make(map[string]*Branch),
		versions:      make(map[string]*DiagramVersion),
		resolver:      cfg.Resolver,
		merger:        cfg.Merger,
		diffCache:     diffCache,
		historyLimit:  cfg.HistoryLimit,
		logger:        cfg.Logger,
	}

	vc.branches[MainBranch] = &Branch{
		Name:      MainBranch,
		CreatedBy: cfg.CreatedBy,
		CreatedAt: time.Now(),
		Protected: true,
	}
	vc.stats.TotalBranches = 1

	return vc
}

func (vc *VersionControl) DiagramID() string {
	return vc.diagramID
}

func (vc *VersionControl) CurrentBranch() string {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.currentBranch
}

// =============================================================================
// Commits
// =============================================================================

type CommitInput struct {
	Changes     []Change
	Message     string
	AuthorID    string
	AuthorName  string
	DiagramData Snapshot
	DiagramCode string

	// BranchName defaults to the currently checked-out branch.
	BranchName string

	// ExpectedHead, when set, rejects the commit with ErrStaleHead if the
	// branch head moved after the caller read it.
	ExpectedHead string

	Metadata map[string]string
}

func (vc *VersionControl) CommitChanges(input CommitInput) (*Commit, error) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	branchName := input.BranchName
	if branchName == "" {
		branchName = vc.currentBranch
	}

	branch, ok := vc.branches[branchName]
	if !ok {
		return nil, newVersionControlError("commit", branchName, ErrBranchNotFound)
	}
	if input.ExpectedHead != "" && input.ExpectedHead != branch.HeadID {
		return nil, newVersionControlError("commit", branchName, ErrStaleHead)
	}

	commit := vc.appendCommit(branch, input)
	return commit.Clone(), nil
}

// appendCommit creates the commit, advances the branch head, and records the
// snapshot version. Callers hold the mutex.
func (vc *VersionControl) appendCommit(branch *Branch, input CommitInput) *Commit {
	commit := &Commit{
		ID:          uuid.New().String(),
		ParentID:    branch.HeadID,
		BranchName:  branch.Name,
		AuthorID:    input.AuthorID,
		AuthorName:  input.AuthorName,
		Message:     input.Message,
		Changes:     cloneChanges(input.Changes),
		Timestamp:   time.Now(),
		DiagramHash: ComputeSnapshotHash(input.DiagramData),
		Metadata:    cloneMetadata(input.Metadata),
	}

	vc.commits[commit.ID] = commit
	branch.HeadID = commit.ID
	vc.versions[commit.ID] = &DiagramVersion{
		CommitID:  commit.ID,
		DiagramID: vc.diagramID,
		Data:      input.DiagramData.Clone(),
		Code:      input.DiagramCode,
		Hash:      commit.DiagramHash,
		CreatedAt: commit.Timestamp,
	}
	vc.stats.TotalCommits++

	vc.logger.Debug("commit recorded",
		"diagram", vc.diagramID,
		"branch", branch.Name,
		"commit", commit.ID,
		"hash", ShortHash(commit.DiagramHash),
		"changes", len(commit.Changes))

	return commit
}

func (vc *VersionControl) GetCommit(commitID string) (*Commit, bool) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	commit, ok := vc.commits[commitID]
	if !ok {
		return nil, false
	}
	return commit.Clone(), true
}

// GetVersion returns the snapshot recorded for a commit.
func (vc *VersionControl) GetVersion(commitID string) (*DiagramVersion, bool) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	version, ok := vc.versions[commitID]
	if !ok {
		return nil, false
	}
	return version.Clone(), true
}

// GetCommitHistory walks a branch's ancestry from its head, newest first.
// A zero limit falls back to the configured history limit.
func (vc *VersionControl) GetCommitHistory(branchName string, limit int) ([]*Commit, error) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	if branchName == "" {
		branchName = vc.currentBranch
	}
	branch, ok := vc.branches[branchName]
	if !ok {
		return nil, newVersionControlError("history", branchName, ErrBranchNotFound)
	}
	if limit <= 0 {
		limit = vc.historyLimit
	}

	history := make([]*Commit, 0, limit)
	for _, commit := range vc.chainFrom(branch.HeadID) {
		if len(history) == limit {
			break
		}
		history = append(history, commit.Clone())
	}
	return history, nil
}

// chainFrom returns the parent chain starting at a commit, newest first.
// Callers hold the mutex.
func (vc *VersionControl) chainFrom(commitID string) []*Commit {
	var chain []*Commit
	for commitID != "" {
		commit, ok := vc.commits[commitID]
		if !ok {
			break
		}
		chain = append(chain, commit)
		commitID = commit.ParentID
	}
	return chain
}

// GetDiff computes the element-level differences between the snapshots of
// two commits. Results are cached per commit pair.
func (vc *VersionControl) GetDiff(commitID1, commitID2 string) ([]Change, error) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	version1, ok := vc.versions[commitID1]
	if !ok {
		return nil, newVersionControlError("diff", commitID1, ErrCommitNotFound)
	}
	version2, ok := vc.versions[commitID2]
	if !ok {
		return nil, newVersionControlError("diff", commitID2, ErrCommitNotFound)
	}

	cacheKey := commitID1 + ":" + commitID2
	if cached, ok := vc.diffCache.Get(cacheKey); ok {
		return cloneChanges(cached), nil
	}

	diff := NewDiffEngine().ComputeDiff(version1.Data, version2.Data)
	vc.diffCache.Add(cacheKey, diff.Changes)
	return cloneChanges(diff.Changes), nil
}

// =============================================================================
// Branches
// =============================================================================

type CreateBranchInput struct {
	Name        string
	FromBranch  string
	FromCommit  string
	CreatedBy   string
	Description string
}

// CreateBranch points a new branch at an existing commit. Exactly one of
// FromCommit or the (defaulted) FromBranch determines the new head.
func (vc *VersionControl) CreateBranch(input CreateBranchInput) (*Branch, error) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	if _, exists := vc.branches[input.Name]; exists {
		return nil, newVersionControlError("create-branch", input.Name, ErrBranchExists)
	}

	headID, createdFrom, err := vc.resolveBranchPoint(input)
	if err != nil {
		return nil, err
	}

	branch := &Branch{
		Name:        input.Name,
		HeadID:      headID,
		CreatedFrom: createdFrom,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   time.Now(),
		Description: input.Description,
	}
	vc.branches[input.Name] = branch
	vc.stats.TotalBranches++

	vc.logger.Debug("branch created",
		"diagram", vc.diagramID,
		"branch", input.Name,
		"from", createdFrom)

	return branch.Clone(), nil
}

func (vc *VersionControl) resolveBranchPoint(input CreateBranchInput) (headID, createdFrom string, err error) {
	if input.FromCommit != "" {
		if _, ok := vc.commits[input.FromCommit]; !ok {
			return "", "", newVersionControlError("create-branch", input.FromCommit, ErrCommitNotFound)
		}
		return input.FromCommit, input.FromCommit, nil
	}

	fromBranch := input.FromBranch
	if fromBranch == "" {
		fromBranch = vc.currentBranch
	}
	source, ok := vc.branches[fromBranch]
	if !ok {
		return "", "", newVersionControlError("create-branch", fromBranch, ErrBranchNotFound)
	}
	return source.HeadID, fromBranch, nil
}

func (vc *VersionControl) GetBranch(name string) (*Branch, bool) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	branch, ok := vc.branches[name]
	if !ok {
		return nil, false
	}
	return branch.Clone(), true
}

func (vc *VersionControl) ListBranches() []*Branch {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	names := make([]string, 0, len(vc.branches))
	for name := range vc.branches {
		names = append(names, name)
	}
	sort.Strings(names)

	branches := make([]*Branch, 0, len(names))
	for _, name := range names {
		branches = append(branches, vc.branches[name].Clone())
	}
	return branches
}

func (vc *VersionControl) SwitchBranch(name string) error {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	if _, ok := vc.branches[name]; !ok {
		return newVersionControlError("switch", name, ErrBranchNotFound)
	}
	vc.currentBranch = name
	return nil
}

func (vc *VersionControl) DeleteBranch(name string) error {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	branch, ok := vc.branches[name]
	if !ok {
		return newVersionControlError("delete-branch", name, ErrBranchNotFound)
	}
	if branch.Protected {
		return newVersionControlError("delete-branch", name, ErrBranchProtected)
	}
	if name == vc.currentBranch {
		return newVersionControlError("delete-branch", name, ErrBranchInUse)
	}

	delete(vc.branches, name)
	vc.stats.TotalBranches--
	return nil
}

func (vc *VersionControl) SetBranchProtection(name string, protected bool) error {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	branch, ok := vc.branches[name]
	if !ok {
		return newVersionControlError("protect-branch", name, ErrBranchNotFound)
	}
	branch.Protected = protected
	return nil
}

// =============================================================================
// Merging
// =============================================================================

// MergeBranches merges source into target. The common ancestor is found by a
// linear scan of both parent chains, which is exact for fork histories;
// merge commits keep a single parent so chains stay linear. When any element
// was changed on both sides since the ancestor, no mutation happens and the
// conflicts come back as data for the caller to resolve and retry.
func (vc *VersionControl) MergeBranches(sourceName, targetName, message, mergedBy string, strategy MergeStrategy) (*MergeResult, error) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	source, ok := vc.branches[sourceName]
	if !ok {
		return nil, newVersionControlError("merge", sourceName, ErrBranchNotFound)
	}
	target, ok := vc.branches[targetName]
	if !ok {
		return nil, newVersionControlError("merge", targetName, ErrBranchNotFound)
	}

	sourceChain := vc.chainFrom(source.HeadID)
	targetChain := vc.chainFrom(target.HeadID)
	ancestorID := commonAncestor(sourceChain, targetChain)

	sourceChanges := changesSince(sourceChain, ancestorID)
	targetChanges := changesSince(targetChain, ancestorID)

	conflicts := vc.resolver.DetectConflicts(sourceChanges, targetChanges)
	if len(conflicts) > 0 {
		vc.stats.ConflictedMerges++
		vc.logger.Debug("merge conflicted",
			"diagram", vc.diagramID,
			"source", sourceName,
			"target", targetName,
			"conflicts", len(conflicts))
		return &MergeResult{
			Status:       MergeStatusConflict,
			SourceBranch: sourceName,
			TargetBranch: targetName,
			AncestorID:   ancestorID,
			Conflicts:    conflicts,
		}, nil
	}

	mergedChanges := make([]Change, 0, len(sourceChanges)+len(targetChanges))
	mergedChanges = append(mergedChanges, sourceChanges...)
	mergedChanges = append(mergedChanges, targetChanges...)

	outcome := vc.merger.MergeChanges(vc.ancestorSnapshot(ancestorID), sourceChanges, targetChanges, strategy, nil)

	commit := vc.appendCommit(target, CommitInput{
		Changes:     mergedChanges,
		Message:     message,
		AuthorID:    mergedBy,
		DiagramData: outcome.Merged,
		Metadata: map[string]string{
			MetadataMergeFrom: sourceName,
			MetadataMergeType: strategy.String(),
		},
	})
	vc.stats.TotalMerges++

	return &MergeResult{
		Status:        MergeStatusSuccess,
		SourceBranch:  sourceName,
		TargetBranch:  targetName,
		AncestorID:    ancestorID,
		MergeCommitID: commit.ID,
		MergedChanges: mergedChanges,
	}, nil
}

func (vc *VersionControl) ancestorSnapshot(ancestorID string) Snapshot {
	if ancestorID == "" {
		return Snapshot{}
	}
	version, ok := vc.versions[ancestorID]
	if !ok {
		return Snapshot{}
	}
	return version.Data
}

// commonAncestor finds the first commit in the target chain (nearest the
// tip) that also appears in the source chain. Chains are newest-first, so
// this is the nearest shared commit of a fork history.
func commonAncestor(sourceChain, targetChain []*Commit) string {
	sourceIDs := make(map[string]struct{}, len(sourceChain))
	for _, commit := range sourceChain {
		sourceIDs[commit.ID] = struct{}{}
	}
	for _, commit := range targetChain {
		if _, ok := sourceIDs[commit.ID]; ok {
			return commit.ID
		}
	}
	return ""
}

// changesSince collects all changes from commits strictly between the
// ancestor and the chain tip, in application (oldest-first) order.
func changesSince(chain []*Commit, ancestorID string) []Change {
	var span []*Commit
	for _, commit := range chain {
		if commit.ID == ancestorID {
			break
		}
		span = append(span, commit)
	}

	var changes []Change
	for i := len(span) - 1; i >= 0; i-- {
		changes = append(changes, span[i].Changes...)
	}
	return changes
}

// =============================================================================
// Revert
// =============================================================================

// RevertCommit records a new commit on the commit's branch whose changes
// undo the reverted commit, and whose snapshot is the head snapshot with the
// inverse changes applied.
func (vc *VersionControl) RevertCommit(commitID, authorID, authorName string) (*Commit, error) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	target, ok := vc.commits[commitID]
	if !ok {
		return nil, newVersionControlError("revert", commitID, ErrCommitNotFound)
	}
	branch, ok := vc.branches[target.BranchName]
	if !ok {
		return nil, newVersionControlError("revert", target.BranchName, ErrBranchNotFound)
	}

	inverted := make([]Change, 0, len(target.Changes))
	for i := len(target.Changes) - 1; i >= 0; i-- {
		inverted = append(inverted, target.Changes[i].Invert())
	}

	data := vc.ancestorSnapshot(branch.HeadID).Clone()
	applyChanges(data, inverted)

	commit := vc.appendCommit(branch, CommitInput{
		Changes:     inverted,
		Message:     "Revert: " + target.Message,
		AuthorID:    authorID,
		AuthorName:  authorName,
		DiagramData: data,
		Metadata:    map[string]string{MetadataReverts: target.ID},
	})
	return commit.Clone(), nil
}

// =============================================================================
// Stats
// =============================================================================

func (vc *VersionControl) Stats() VersionControlStats {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.stats
}
