package dto

import "time"

// CreateCommunityRequest is the payload for creating a community.
type CreateCommunityRequest struct {
	Name  string `json:"name" binding:"required,min=3,max=60" example:"Gophers"`
	Image string `json:"image" binding:"omitempty,url" example:"https://img.example.com/gophers.png"`
}

// CommunityResponse represents a community.
type CommunityResponse struct {
	ID          int64     `json:"id" example:"1"`
	ExternalID  string    `json:"externalId" example:"comm_8f14e45f"`
	Name        string    `json:"name" example:"Gophers"`
	Image       string    `json:"image" example:"https://img.example.com/gophers.png"`
	MemberCount int       `json:"memberCount" example:"12"`
	CreatedAt   time.Time `json:"createdAt" example:"2024-01-01T10:00:00Z"`
}

// CommunityDetailResponse is a community with its members populated.
type CommunityDetailResponse struct {
	CommunityResponse
	Members []*UserResponse `json:"members"`
}

// CommunityListResponse is the paginated community listing.
type CommunityListResponse struct {
	Communities []*CommunityResponse `json:"communities"`
	PaginationInfo
}

// CommunityPostsResponse lists the memories posted under a community.
type CommunityPostsResponse struct {
	Community *CommunityResponse `json:"community"`
	Memories  []*MemoryResponse  `json:"memories"`
}
