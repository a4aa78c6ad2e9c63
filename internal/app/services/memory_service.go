package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/selin/memoria/internal/app/models/dto"
	"github.com/selin/memoria/internal/app/repositories"
	"github.com/selin/memoria/internal/pkg/apperrors"
	"github.com/selin/memoria/internal/pkg/helpers"
	"github.com/selin/memoria/internal/pkg/revalidate"
)

// MemoryService defines the interface for memory and thread operations
type MemoryService interface {
	GetFeed(ctx context.Context, page, pageSize int) (*dto.MemoryFeedResponse, error)
	CreateMemory(ctx context.Context, externalUserID string, req *dto.CreateMemoryRequest) (*dto.CreateMemoryResponse, error)
	GetMemory(ctx context.Context, id int64) (*dto.MemoryResponse, error)
	AddComment(ctx context.Context, externalUserID string, parentID int64, req *dto.AddCommentRequest) (*dto.CreateMemoryResponse, error)
	DeleteMemory(ctx context.Context, externalUserID string, id int64) error
}

// memoryServiceImpl implements MemoryService
type memoryServiceImpl struct {
	memoryRepo      repositories.MemoryRepository
	userRepo        repositories.UserRepository
	communityRepo   repositories.CommunityRepository
	notifier        revalidate.Notifier
	strictCommunity bool
	logger          zerolog.Logger
}

// NewMemoryService creates a new MemoryService
func NewMemoryService(
	memoryRepo repositories.MemoryRepository,
	userRepo repositories.UserRepository,
	communityRepo repositories.CommunityRepository,
	notifier revalidate.Notifier,
	strictCommunity bool,
	logger zerolog.Logger,
) MemoryService {
	return &memoryServiceImpl{
		memoryRepo:      memoryRepo,
		userRepo:        userRepo,
		communityRepo:   communityRepo,
		notifier:        notifier,
		strictCommunity: strictCommunity,
		logger:          logger,
	}
}

// GetFeed returns a page of top-level memories, newest first.
func (s *memoryServiceImpl) GetFeed(ctx context.Context, page, pageSize int) (*dto.MemoryFeedResponse, error) {
	memories, total, err := s.memoryRepo.ListTopLevel(ctx, page, pageSize)
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Msg("Failed to list feed")
		return nil, err
	}

	return &dto.MemoryFeedResponse{
		Memories: toMemoryResponses(memories),
		PaginationInfo: dto.PaginationInfo{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
			HasMore:     helpers.HasMore(total, page, pageSize, len(memories)),
		},
	}, nil
}

// CreateMemory creates a top-level memory for the calling user, optionally
// attached to a community.
func (s *memoryServiceImpl) CreateMemory(ctx context.Context, externalUserID string, req *dto.CreateMemoryRequest) (*dto.CreateMemoryResponse, error) {
	user, err := resolveCaller(ctx, s.userRepo, externalUserID)
	if err != nil {
		return nil, err
	}

	communityID, err := s.resolveCommunity(ctx, req.CommunityID)
	if err != nil {
		return nil, err
	}

	memory, err := s.memoryRepo.Create(ctx, req.Text, user.ID, communityID)
	if err != nil {
		s.logger.Error().Err(err).Int64("userID", user.ID).Msg("Failed to create memory")
		return nil, err
	}

	s.logger.Info().Int64("memoryID", memory.ID).Int64("userID", user.ID).Msg("Memory created")
	s.notifier.PathChanged("/")

	return &dto.CreateMemoryResponse{ID: memory.ID}, nil
}

// resolveCommunity maps an optional external community id to an internal id.
// When the id does not resolve, strict mode fails the request and lenient
// mode posts the memory without a community.
func (s *memoryServiceImpl) resolveCommunity(ctx context.Context, externalID *string) (*int64, error) {
	if externalID == nil || *externalID == "" {
		return nil, nil
	}

	id, err := s.communityRepo.ResolveExternalID(ctx, *externalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrCommunityNotFound) && !s.strictCommunity {
			s.logger.Warn().Str("communityExternalID", *externalID).Msg("Community not found, posting without community")
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

// GetMemory returns a memory with two levels of replies populated.
func (s *memoryServiceImpl) GetMemory(ctx context.Context, id int64) (*dto.MemoryResponse, error) {
	memory, err := s.memoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toMemoryResponse(memory), nil
}

// AddComment creates a reply under the given memory.
func (s *memoryServiceImpl) AddComment(ctx context.Context, externalUserID string, parentID int64, req *dto.AddCommentRequest) (*dto.CreateMemoryResponse, error) {
	user, err := resolveCaller(ctx, s.userRepo, externalUserID)
	if err != nil {
		return nil, err
	}

	commentID, err := s.memoryRepo.AddComment(ctx, parentID, req.Text, user.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("parentID", parentID).Msg("Failed to add comment")
		return nil, err
	}

	s.logger.Info().Int64("commentID", commentID).Int64("parentID", parentID).Msg("Comment added")
	s.notifier.PathChanged(fmt.Sprintf("/memory/%d", parentID))

	return &dto.CreateMemoryResponse{ID: commentID}, nil
}

// DeleteMemory removes a memory and its whole reply subtree. Only the author
// may delete.
func (s *memoryServiceImpl) DeleteMemory(ctx context.Context, externalUserID string, id int64) error {
	user, err := resolveCaller(ctx, s.userRepo, externalUserID)
	if err != nil {
		return err
	}

	memory, err := s.memoryRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if memory.AuthorID != user.ID {
		return apperrors.ErrNotMemoryAuthor
	}

	if err := s.memoryRepo.DeleteSubtree(ctx, id); err != nil {
		s.logger.Error().Err(err).Int64("memoryID", id).Msg("Failed to delete memory subtree")
		return err
	}

	s.logger.Info().Int64("memoryID", id).Int64("userID", user.ID).Msg("Memory subtree deleted")
	s.notifier.PathChanged("/")

	return nil
}
