package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/selin/memoria/internal/app/models/dto"
	"github.com/selin/memoria/internal/app/repositories"
	"github.com/selin/memoria/internal/pkg/apperrors"
	"github.com/selin/memoria/internal/pkg/helpers"
	"github.com/selin/memoria/internal/pkg/revalidate"
)

// UserService defines the interface for user profile operations
type UserService interface {
	GetCurrentUser(ctx context.Context, externalUserID string) (*dto.UserResponse, error)
	UpdateUser(ctx context.Context, externalUserID string, req *dto.UpdateUserRequest) (*dto.UserResponse, error)
	SearchUsers(ctx context.Context, externalUserID, search, sortOrder string, page, pageSize int) (*dto.UserListResponse, error)
	GetActivity(ctx context.Context, externalUserID string) (*dto.ActivityResponse, error)
	GetUserPosts(ctx context.Context, userID int64) (*dto.UserPostsResponse, error)
}

// userServiceImpl implements UserService
type userServiceImpl struct {
	userRepo repositories.UserRepository
	notifier revalidate.Notifier
	logger   zerolog.Logger
}

// NewUserService creates a new UserService
func NewUserService(userRepo repositories.UserRepository, notifier revalidate.Notifier, logger zerolog.Logger) UserService {
	return &userServiceImpl{
		userRepo: userRepo,
		notifier: notifier,
		logger:   logger,
	}
}

// GetCurrentUser returns the caller's profile. A missing account reports
// ErrUserNotFound so the frontend can route to onboarding.
func (s *userServiceImpl) GetCurrentUser(ctx context.Context, externalUserID string) (*dto.UserResponse, error) {
	user, err := s.userRepo.FindByExternalID(ctx, externalUserID)
	if err != nil {
		s.logger.Error().Err(err).Str("externalUserID", externalUserID).Msg("Failed to look up user")
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrUserNotFound
	}
	return toUserResponse(user), nil
}

// UpdateUser creates or updates the caller's profile. The first successful
// call completes onboarding.
func (s *userServiceImpl) UpdateUser(ctx context.Context, externalUserID string, req *dto.UpdateUserRequest) (*dto.UserResponse, error) {
	user, err := s.userRepo.Upsert(ctx, externalUserID, repositories.UserProfile{
		Username: req.Username,
		Name:     req.Name,
		Bio:      req.Bio,
		Image:    req.Image,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("externalUserID", externalUserID).Msg("Failed to upsert user")
		return nil, err
	}

	s.logger.Info().Int64("userID", user.ID).Str("username", user.Username).Msg("User profile updated")
	s.notifier.PathChanged("/profile")

	return toUserResponse(user), nil
}

// SearchUsers returns a page of users matching the search term, excluding
// the caller.
func (s *userServiceImpl) SearchUsers(ctx context.Context, externalUserID, search, sortOrder string, page, pageSize int) (*dto.UserListResponse, error) {
	users, total, err := s.userRepo.Search(ctx, repositories.UserSearchParams{
		ExcludeExternalID: externalUserID,
		Search:            search,
		Page:              page,
		PageSize:          pageSize,
		SortOrder:         sortOrder,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("search", search).Msg("Failed to search users")
		return nil, err
	}

	out := make([]*dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return &dto.UserListResponse{
		Users: out,
		PaginationInfo: dto.PaginationInfo{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
			HasMore:     helpers.HasMore(total, page, pageSize, len(users)),
		},
	}, nil
}

// GetActivity returns the replies other users left on the caller's memories.
func (s *userServiceImpl) GetActivity(ctx context.Context, externalUserID string) (*dto.ActivityResponse, error) {
	user, err := resolveCaller(ctx, s.userRepo, externalUserID)
	if err != nil {
		return nil, err
	}

	replies, err := s.userRepo.ListActivity(ctx, user.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("userID", user.ID).Msg("Failed to list activity")
		return nil, err
	}
	return &dto.ActivityResponse{Replies: toMemoryResponses(replies)}, nil
}

// GetUserPosts returns a user's profile together with the memories they
// authored.
func (s *userServiceImpl) GetUserPosts(ctx context.Context, userID int64) (*dto.UserPostsResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	memories, err := s.userRepo.ListPosts(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("userID", userID).Msg("Failed to list user posts")
		return nil, err
	}

	return &dto.UserPostsResponse{
		User:     toUserResponse(user),
		Memories: toMemoryResponses(memories),
	}, nil
}
