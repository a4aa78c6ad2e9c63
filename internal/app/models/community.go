package models

import "time"

// Community represents a posting community based on the 'communities' table.
type Community struct {
	ID         int64     `json:"id" db:"id" example:"1"`
	ExternalID string    `json:"externalId" db:"external_id" example:"comm_8f14e45f"`
	Name       string    `json:"name" db:"name" example:"Gophers"`
	Image      string    `json:"image" db:"image" example:"https://img.example.com/gophers.png"`
	CreatedBy  *int64    `json:"createdBy,omitempty" db:"created_by"`
	MemberIDs  []int64   `json:"-" db:"member_ids"` // Internal user ids of members
	MemoryIDs  []int64   `json:"-" db:"memory_ids"` // Reverse index of memories posted here
	CreatedAt  time.Time `json:"createdAt" db:"created_at" example:"2024-01-01T10:00:00Z"`

	// Related entities, populated on demand (no db tag)
	Members []*User `json:"members,omitempty"`
}
