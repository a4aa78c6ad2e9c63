package dto

import "time"

// CreateMemoryRequest is the payload for posting a new top-level memory.
// Text length is enforced here, at the boundary; repositories trust it.
type CreateMemoryRequest struct {
	Text        string  `json:"text" binding:"required,min=3" example:"Hello world"`
	CommunityID *string `json:"communityId,omitempty" example:"comm_8f14e45f"`
}

// AddCommentRequest is the payload for replying to a memory.
type AddCommentRequest struct {
	Text string `json:"text" binding:"required,min=3" example:"Nice!"`
}

// MemoryAuthorResponse is the author projection embedded in memory responses.
type MemoryAuthorResponse struct {
	ID         int64  `json:"id" example:"1"`
	ExternalID string `json:"externalId" example:"user_2NNEqL2xvVkC"`
	Username   string `json:"username" example:"jdoe"`
	Name       string `json:"name" example:"John Doe"`
	Image      string `json:"image" example:"https://img.example.com/jdoe.jpg"`
}

// MemoryCommunityResponse is the community projection embedded in memory responses.
type MemoryCommunityResponse struct {
	ID         int64  `json:"id" example:"1"`
	ExternalID string `json:"externalId" example:"comm_8f14e45f"`
	Name       string `json:"name" example:"Gophers"`
	Image      string `json:"image" example:"https://img.example.com/gophers.png"`
}

// MemoryResponse represents a memory with its populated relations. Children
// are present up to two reply levels on the thread detail endpoint and one
// level on list endpoints.
type MemoryResponse struct {
	ID        int64                    `json:"id" example:"1"`
	Text      string                   `json:"text" example:"Hello world"`
	ParentID  *int64                   `json:"parentId,omitempty"`
	Author    *MemoryAuthorResponse    `json:"author,omitempty"`
	Community *MemoryCommunityResponse `json:"community,omitempty"`
	Children  []*MemoryResponse        `json:"children,omitempty"`
	CreatedAt time.Time                `json:"createdAt" example:"2024-01-01T10:00:00Z"`
}

// MemoryFeedResponse is the paginated feed of top-level memories.
type MemoryFeedResponse struct {
	Memories []*MemoryResponse `json:"memories"`
	PaginationInfo
}

// CreateMemoryResponse carries the id of a newly created memory or comment.
type CreateMemoryResponse struct {
	ID int64 `json:"id" example:"7"`
}
