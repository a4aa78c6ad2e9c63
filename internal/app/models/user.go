package models

import "time"

// User defines the user model based on the 'users' table. ExternalID is the
// identity provider's id; ID is the internal storage identifier. Both are
// supported for lookups.
type User struct {
	ID           int64     `json:"id" db:"id" example:"1"`
	ExternalID   string    `json:"externalId" db:"external_id" example:"user_2NNEqL2xvVkC"`
	Username     string    `json:"username" db:"username" example:"jdoe"` // Stored lowercase
	Name         string    `json:"name" db:"name" example:"John Doe"`
	Bio          string    `json:"bio" db:"bio" example:"I collect memories"`
	Image        string    `json:"image" db:"image" example:"https://img.example.com/jdoe.jpg"`
	Onboarded    bool      `json:"onboarded" db:"onboarded" example:"true"`
	MemoryIDs    []int64   `json:"-" db:"memory_ids"`    // Reverse index of authored memories
	CommunityIDs []int64   `json:"-" db:"community_ids"` // Community memberships
	CreatedAt    time.Time `json:"createdAt" db:"created_at" example:"2024-01-01T10:00:00Z"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at" example:"2024-01-02T15:30:00Z"`

	// Related entities, populated on demand (no db tag)
	Communities []*Community `json:"communities,omitempty"`
}
