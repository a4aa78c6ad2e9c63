package dto

import "time"

// UpdateUserRequest is the onboarding/profile-update payload. The operation
// is an idempotent upsert keyed by the caller's external id.
type UpdateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30" example:"jdoe"`
	Name     string `json:"name" binding:"required,min=1,max=60" example:"John Doe"`
	Bio      string `json:"bio" binding:"max=1000" example:"I collect memories"`
	Image    string `json:"image" binding:"omitempty,url" example:"https://img.example.com/jdoe.jpg"`
}

// UserResponse represents a user profile.
type UserResponse struct {
	ID          int64                      `json:"id" example:"1"`
	ExternalID  string                     `json:"externalId" example:"user_2NNEqL2xvVkC"`
	Username    string                     `json:"username" example:"jdoe"`
	Name        string                     `json:"name" example:"John Doe"`
	Bio         string                     `json:"bio" example:"I collect memories"`
	Image       string                     `json:"image" example:"https://img.example.com/jdoe.jpg"`
	Onboarded   bool                       `json:"onboarded" example:"true"`
	Communities []*MemoryCommunityResponse `json:"communities,omitempty"`
	CreatedAt   time.Time                  `json:"createdAt" example:"2024-01-01T10:00:00Z"`
}

// UserListResponse is the paginated user search result.
type UserListResponse struct {
	Users []*UserResponse `json:"users"`
	PaginationInfo
}

// ActivityResponse lists replies other users left on the caller's memories.
type ActivityResponse struct {
	Replies []*MemoryResponse `json:"replies"`
}

// UserPostsResponse lists the memories a user authored.
type UserPostsResponse struct {
	User     *UserResponse     `json:"user"`
	Memories []*MemoryResponse `json:"memories"`
}
