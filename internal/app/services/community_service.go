package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/selin/memoria/internal/app/models"
	"github.com/selin/memoria/internal/app/models/dto"
	"github.com/selin/memoria/internal/app/repositories"
	"github.com/selin/memoria/internal/pkg/helpers"
	"github.com/selin/memoria/internal/pkg/revalidate"
)

// CommunityService defines the interface for community operations
type CommunityService interface {
	CreateCommunity(ctx context.Context, externalUserID string, req *dto.CreateCommunityRequest) (*dto.CommunityResponse, error)
	GetCommunity(ctx context.Context, externalID string) (*dto.CommunityDetailResponse, error)
	ListCommunities(ctx context.Context, search string, page, pageSize int) (*dto.CommunityListResponse, error)
	GetCommunityPosts(ctx context.Context, externalID string) (*dto.CommunityPostsResponse, error)
	JoinCommunity(ctx context.Context, externalID, externalUserID string) error
	LeaveCommunity(ctx context.Context, externalID, externalUserID string) error
}

// communityServiceImpl implements CommunityService
type communityServiceImpl struct {
	communityRepo repositories.CommunityRepository
	memoryRepo    repositories.MemoryRepository
	userRepo      repositories.UserRepository
	notifier      revalidate.Notifier
	logger        zerolog.Logger
}

// NewCommunityService creates a new CommunityService
func NewCommunityService(
	communityRepo repositories.CommunityRepository,
	memoryRepo repositories.MemoryRepository,
	userRepo repositories.UserRepository,
	notifier revalidate.Notifier,
	logger zerolog.Logger,
) CommunityService {
	return &communityServiceImpl{
		communityRepo: communityRepo,
		memoryRepo:    memoryRepo,
		userRepo:      userRepo,
		notifier:      notifier,
		logger:        logger,
	}
}

// CreateCommunity creates a community with a generated external id. The
// caller becomes its first member.
func (s *communityServiceImpl) CreateCommunity(ctx context.Context, externalUserID string, req *dto.CreateCommunityRequest) (*dto.CommunityResponse, error) {
	user, err := resolveCaller(ctx, s.userRepo, externalUserID)
	if err != nil {
		return nil, err
	}

	community, err := s.communityRepo.Create(ctx, &models.Community{
		ExternalID: fmt.Sprintf("comm_%s", uuid.NewString()),
		Name:       req.Name,
		Image:      req.Image,
		CreatedBy:  &user.ID,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("name", req.Name).Msg("Failed to create community")
		return nil, err
	}

	s.logger.Info().Int64("communityID", community.ID).Str("name", community.Name).Msg("Community created")
	s.notifier.PathChanged("/communities")

	return toCommunityResponse(community), nil
}

// GetCommunity returns a community with its members populated.
func (s *communityServiceImpl) GetCommunity(ctx context.Context, externalID string) (*dto.CommunityDetailResponse, error) {
	community, err := s.communityRepo.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	resp := &dto.CommunityDetailResponse{CommunityResponse: *toCommunityResponse(community)}
	for _, member := range community.Members {
		resp.Members = append(resp.Members, toUserResponse(member))
	}
	return resp, nil
}

// ListCommunities returns a page of communities filtered by name.
func (s *communityServiceImpl) ListCommunities(ctx context.Context, search string, page, pageSize int) (*dto.CommunityListResponse, error) {
	communities, total, err := s.communityRepo.List(ctx, search, page, pageSize)
	if err != nil {
		s.logger.Error().Err(err).Str("search", search).Msg("Failed to list communities")
		return nil, err
	}

	out := make([]*dto.CommunityResponse, 0, len(communities))
	for _, c := range communities {
		out = append(out, toCommunityResponse(c))
	}
	return &dto.CommunityListResponse{
		Communities: out,
		PaginationInfo: dto.PaginationInfo{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
			HasMore:     helpers.HasMore(total, page, pageSize, len(communities)),
		},
	}, nil
}

// GetCommunityPosts returns the memories posted under a community.
func (s *communityServiceImpl) GetCommunityPosts(ctx context.Context, externalID string) (*dto.CommunityPostsResponse, error) {
	community, err := s.communityRepo.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	memories, err := s.memoryRepo.ListByCommunity(ctx, community.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("communityID", community.ID).Msg("Failed to list community posts")
		return nil, err
	}

	return &dto.CommunityPostsResponse{
		Community: toCommunityResponse(community),
		Memories:  toMemoryResponses(memories),
	}, nil
}

// JoinCommunity adds the caller to a community.
func (s *communityServiceImpl) JoinCommunity(ctx context.Context, externalID, externalUserID string) error {
	user, err := resolveCaller(ctx, s.userRepo, externalUserID)
	if err != nil {
		return err
	}

	communityID, err := s.communityRepo.ResolveExternalID(ctx, externalID)
	if err != nil {
		return err
	}

	if err := s.communityRepo.AddMember(ctx, communityID, user.ID); err != nil {
		return err
	}

	s.logger.Info().Int64("communityID", communityID).Int64("userID", user.ID).Msg("User joined community")
	s.notifier.PathChanged("/communities")

	return nil
}

// LeaveCommunity removes the caller from a community.
func (s *communityServiceImpl) LeaveCommunity(ctx context.Context, externalID, externalUserID string) error {
	user, err := resolveCaller(ctx, s.userRepo, externalUserID)
	if err != nil {
		return err
	}

	communityID, err := s.communityRepo.ResolveExternalID(ctx, externalID)
	if err != nil {
		return err
	}

	if err := s.communityRepo.RemoveMember(ctx, communityID, user.ID); err != nil {
		return err
	}

	s.logger.Info().Int64("communityID", communityID).Int64("userID", user.ID).Msg("User left community")
	s.notifier.PathChanged("/communities")

	return nil
}
