package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selin/memoria/internal/app/models/dto"
	"github.com/selin/memoria/internal/pkg/apperrors"
)

func TestGetCurrentUserBeforeOnboarding(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.users.GetCurrentUser(context.Background(), "ext-new")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestOnboardingFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	created, err := f.users.UpdateUser(ctx, "ext-1", &dto.UpdateUserRequest{
		Username: "Alice",
		Name:     "Alice A",
		Bio:      "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Username)
	assert.True(t, created.Onboarded)
	assert.Contains(t, f.notifier.Paths(), "/profile")

	current, err := f.users.GetCurrentUser(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, current.ID)

	// A second upsert updates in place.
	updated, err := f.users.UpdateUser(ctx, "ext-1", &dto.UpdateUserRequest{
		Username: "alice",
		Name:     "Alice B",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Alice B", updated.Name)
}

func TestSearchUsersExcludesSelf(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.onboard(t, "ext-1", "alice")
	f.onboard(t, "ext-2", "bob")
	f.onboard(t, "ext-3", "bobby")

	result, err := f.users.SearchUsers(ctx, "ext-2", "bob", "desc", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.TotalItems)
	require.Len(t, result.Users, 1)
	assert.Equal(t, "bobby", result.Users[0].Username)
}

func TestGetActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.onboard(t, "ext-1", "alice")
	f.onboard(t, "ext-2", "bob")

	root, err := f.memories.CreateMemory(ctx, "ext-1", &dto.CreateMemoryRequest{Text: "alice's memory"})
	require.NoError(t, err)
	reply, err := f.memories.AddComment(ctx, "ext-2", root.ID, &dto.AddCommentRequest{Text: "bob replying"})
	require.NoError(t, err)
	_, err = f.memories.AddComment(ctx, "ext-1", root.ID, &dto.AddCommentRequest{Text: "alice replying to herself"})
	require.NoError(t, err)

	activity, err := f.users.GetActivity(ctx, "ext-1")
	require.NoError(t, err)
	require.Len(t, activity.Replies, 1)
	assert.Equal(t, reply.ID, activity.Replies[0].ID)
	require.NotNil(t, activity.Replies[0].Author)
	assert.Equal(t, "bob", activity.Replies[0].Author.Username)
}

func TestGetUserPosts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	alice := f.onboard(t, "ext-1", "alice")
	f.onboard(t, "ext-2", "bob")

	root, err := f.memories.CreateMemory(ctx, "ext-1", &dto.CreateMemoryRequest{Text: "alice's memory"})
	require.NoError(t, err)
	// Comments do not show up among a user's posts.
	_, err = f.memories.AddComment(ctx, "ext-1", root.ID, &dto.AddCommentRequest{Text: "alice's own reply"})
	require.NoError(t, err)

	posts, err := f.users.GetUserPosts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", posts.User.Username)
	require.Len(t, posts.Memories, 1)
	assert.Equal(t, root.ID, posts.Memories[0].ID)

	_, err = f.users.GetUserPosts(ctx, 404)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
