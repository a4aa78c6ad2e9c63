package models

import "time"

// Memory represents a post or a reply based on the 'memories' table.
// A memory with a nil ParentID is a top-level post and appears in the feed;
// a memory with ParentID set is a reply inside a thread.
type Memory struct {
	ID          int64     `json:"id" db:"id" example:"1"`
	Text        string    `json:"text" db:"text" example:"Hello world"`
	AuthorID    int64     `json:"authorId" db:"author_id" example:"1"`
	CommunityID *int64    `json:"communityId,omitempty" db:"community_id"`
	ParentID    *int64    `json:"parentId,omitempty" db:"parent_id"`
	ChildIDs    []int64   `json:"childIds" db:"children"` // Ordered reply ids; authoritative adjacency list for the thread tree
	CreatedAt   time.Time `json:"createdAt" db:"created_at" example:"2024-01-01T10:00:00Z"`

	// Related entities, populated on demand (no db tag)
	Author    *User      `json:"author,omitempty"`
	Community *Community `json:"community,omitempty"`
	Children  []*Memory  `json:"children,omitempty"`
}

// IsTopLevel reports whether the memory is a top-level post.
func (m *Memory) IsTopLevel() bool {
	return m.ParentID == nil
}
