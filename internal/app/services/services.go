// Package services contains the application's business logic, orchestrating
// repositories and mapping domain models to response DTOs.
package services

import (
	"context"

	"github.com/selin/memoria/internal/app/models"
	"github.com/selin/memoria/internal/app/models/dto"
	"github.com/selin/memoria/internal/app/repositories"
	"github.com/selin/memoria/internal/pkg/apperrors"
)

// resolveCaller maps the authenticated external id to a local account. A
// missing account means the caller has not completed onboarding yet.
func resolveCaller(ctx context.Context, users repositories.UserRepository, externalID string) (*models.User, error) {
	user, err := users.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrUserNotOnboarded
	}
	return user, nil
}

func toAuthorResponse(u *models.User) *dto.MemoryAuthorResponse {
	if u == nil {
		return nil
	}
	return &dto.MemoryAuthorResponse{
		ID:         u.ID,
		ExternalID: u.ExternalID,
		Username:   u.Username,
		Name:       u.Name,
		Image:      u.Image,
	}
}

func toMemoryCommunityResponse(c *models.Community) *dto.MemoryCommunityResponse {
	if c == nil {
		return nil
	}
	return &dto.MemoryCommunityResponse{
		ID:         c.ID,
		ExternalID: c.ExternalID,
		Name:       c.Name,
		Image:      c.Image,
	}
}

func toMemoryResponse(m *models.Memory) *dto.MemoryResponse {
	resp := &dto.MemoryResponse{
		ID:        m.ID,
		Text:      m.Text,
		ParentID:  m.ParentID,
		Author:    toAuthorResponse(m.Author),
		Community: toMemoryCommunityResponse(m.Community),
		CreatedAt: m.CreatedAt,
	}
	for _, child := range m.Children {
		resp.Children = append(resp.Children, toMemoryResponse(child))
	}
	return resp
}

func toMemoryResponses(memories []*models.Memory) []*dto.MemoryResponse {
	out := make([]*dto.MemoryResponse, 0, len(memories))
	for _, m := range memories {
		out = append(out, toMemoryResponse(m))
	}
	return out
}

func toUserResponse(u *models.User) *dto.UserResponse {
	resp := &dto.UserResponse{
		ID:         u.ID,
		ExternalID: u.ExternalID,
		Username:   u.Username,
		Name:       u.Name,
		Bio:        u.Bio,
		Image:      u.Image,
		Onboarded:  u.Onboarded,
		CreatedAt:  u.CreatedAt,
	}
	for _, c := range u.Communities {
		resp.Communities = append(resp.Communities, toMemoryCommunityResponse(c))
	}
	return resp
}

func toCommunityResponse(c *models.Community) *dto.CommunityResponse {
	return &dto.CommunityResponse{
		ID:          c.ID,
		ExternalID:  c.ExternalID,
		Name:        c.Name,
		Image:       c.Image,
		MemberCount: len(c.MemberIDs),
		CreatedAt:   c.CreatedAt,
	}
}
