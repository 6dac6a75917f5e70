// Package comments is the discussion layer over collaborative sessions:
// element-anchored threads of comments and replies. Permission gating lives
// with the caller; this package only tracks the threads themselves.
package comments

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Comment is one message in a thread. A ParentID links a reply to its root
// comment; roots have none.
type Comment struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	DiagramID  string    `json:"diagram_id"`
	ElementID  string    `json:"element_id,omitempty"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Resolved   bool      `json:"resolved"`
	ParentID   string    `json:"parent_id,omitempty"`
}

func (c *Comment) Clone() *Comment {
	clone := *c
	return &clone
}

// Stats summarizes retained comments.
type Stats struct {
	TotalComments int `json:"total_comments"`
	OpenThreads   int `json:"open_threads"`
	Resolved      int `json:"resolved"`
	Sessions      int `json:"sessions"`
}

// System stores comment threads keyed by session. Expected outcomes —
// missing comments, non-author edits — come back as false/nil, never as
// errors.
type System struct {
	mu        sync.RWMutex
	comments  map[string]*Comment
	bySession map[string][]string
}

func NewSystem() *System {
	return &System{
		comments:  make(map[string]*Comment),
		bySession: make(map[string][]string),
	}
}

// Add opens a new root comment, optionally anchored to an element.
func (s *System) Add(sessionID, diagramID, elementID, authorID, authorName, body string) *Comment {
	now := time.Now()
	comment := &Comment{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		DiagramID:  diagramID,
		ElementID:  elementID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Body:       body,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	s.comments[comment.ID] = comment
	s.bySession[sessionID] = append(s.bySession[sessionID], comment.ID)
	s.mu.Unlock()

	return comment.Clone()
}

// Reply attaches a comment under an existing root. Returns nil when the
// parent is missing. Replies to replies hang off the same root.
func (s *System) Reply(parentID, authorID, authorName, body string) *Comment {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.comments[parentID]
	if !ok {
		return nil
	}
	rootID := parentID
	if parent.ParentID != "" {
		rootID = parent.ParentID
	}

	now := time.Now()
	comment := &Comment{
		ID:         uuid.New().String(),
		SessionID:  parent.SessionID,
		DiagramID:  parent.DiagramID,
		ElementID:  parent.ElementID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Body:       body,
		CreatedAt:  now,
		UpdatedAt:  now,
		ParentID:   rootID,
	}
	s.comments[comment.ID] = comment
	s.bySession[comment.SessionID] = append(s.bySession[comment.SessionID], comment.ID)
	return comment.Clone()
}

// Edit replaces a comment's body. Only the author may edit.
func (s *System) Edit(commentID, editorID, body string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[commentID]
	if !ok || comment.AuthorID != editorID {
		return false
	}
	comment.Body = body
	comment.UpdatedAt = time.Now()
	return true
}

// Resolve closes a thread. Resolving a reply resolves its root.
func (s *System) Resolve(commentID string) bool {
	return s.setResolved(commentID, true)
}

// Reopen reverses a Resolve.
func (s *System) Reopen(commentID string) bool {
	return s.setResolved(commentID, false)
}

func (s *System) setResolved(commentID string, resolved bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[commentID]
	if !ok {
		return false
	}
	if comment.ParentID != "" {
		if root, ok := s.comments[comment.ParentID]; ok {
			comment = root
		}
	}
	comment.Resolved = resolved
	comment.UpdatedAt = time.Now()
	return true
}

// Delete removes a comment and, for roots, its whole thread. Only the
// author may delete.
func (s *System) Delete(commentID, deletedBy string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[commentID]
	if !ok || comment.AuthorID != deletedBy {
		return false
	}

	removed := map[string]struct{}{commentID: {}}
	delete(s.comments, commentID)
	if comment.ParentID == "" {
		for id, candidate := range s.comments {
			if candidate.ParentID == commentID {
				removed[id] = struct{}{}
				delete(s.comments, id)
			}
		}
	}

	ids := s.bySession[comment.SessionID]
	kept := ids[:0]
	for _, id := range ids {
		if _, gone := removed[id]; !gone {
			kept = append(kept, id)
		}
	}
	s.bySession[comment.SessionID] = kept
	return true
}

// Get returns a copy of one comment.
func (s *System) Get(commentID string) (*Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[commentID]
	if !ok {
		return nil, false
	}
	return comment.Clone(), true
}

// ForSession returns every comment in a session, oldest first.
func (s *System) ForSession(sessionID string) []*Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Comment, 0, len(s.bySession[sessionID]))
	for _, id := range s.bySession[sessionID] {
		if comment, ok := s.comments[id]; ok {
			result = append(result, comment.Clone())
		}
	}
	sortByCreation(result)
	return result
}

// ForElement returns a session's comments anchored to one element, oldest
// first.
func (s *System) ForElement(sessionID, elementID string) []*Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Comment
	for _, id := range s.bySession[sessionID] {
		comment, ok := s.comments[id]
		if ok && comment.ElementID == elementID {
			result = append(result, comment.Clone())
		}
	}
	sortByCreation(result)
	return result
}

// Thread returns a root comment followed by its replies in creation order.
// Passing a reply id resolves to its thread. Nil when the comment is
// missing.
func (s *System) Thread(commentID string) []*Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[commentID]
	if !ok {
		return nil
	}
	rootID := commentID
	if comment.ParentID != "" {
		rootID = comment.ParentID
	}
	root, ok := s.comments[rootID]
	if !ok {
		return nil
	}

	thread := []*Comment{root.Clone()}
	var replies []*Comment
	for _, candidate := range s.comments {
		if candidate.ParentID == rootID {
			replies = append(replies, candidate.Clone())
		}
	}
	sortByCreation(replies)
	return append(thread, replies...)
}

func (s *System) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalComments: len(s.comments),
		Sessions:      len(s.bySession),
	}
	for _, comment := range s.comments {
		if comment.ParentID != "" {
			continue
		}
		if comment.Resolved {
			stats.Resolved++
		} else {
			stats.OpenThreads++
		}
	}
	return stats
}

func sortByCreation(comments []*Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}
