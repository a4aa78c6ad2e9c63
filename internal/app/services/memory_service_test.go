package services

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selin/memoria/internal/app/models/dto"
	"github.com/selin/memoria/internal/app/repositories/inmemory"
	"github.com/selin/memoria/internal/pkg/apperrors"
)

// recordingNotifier captures emitted revalidation paths.
type recordingNotifier struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNotifier) PathChanged(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNotifier) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.paths))
	copy(out, n.paths)
	return out
}

type fixture struct {
	store     *inmemory.Store
	notifier  *recordingNotifier
	memories  MemoryService
	users     UserService
	community CommunityService
}

func newFixture(t *testing.T, strictCommunity bool) *fixture {
	t.Helper()
	store := inmemory.New()
	notifier := &recordingNotifier{}
	logger := zerolog.Nop()
	return &fixture{
		store:     store,
		notifier:  notifier,
		memories:  NewMemoryService(store.Memories, store.Users, store.Communities, notifier, strictCommunity, logger),
		users:     NewUserService(store.Users, notifier, logger),
		community: NewCommunityService(store.Communities, store.Memories, store.Users, notifier, logger),
	}
}

func (f *fixture) onboard(t *testing.T, externalID, username string) *dto.UserResponse {
	t.Helper()
	user, err := f.users.UpdateUser(context.Background(), externalID, &dto.UpdateUserRequest{
		Username: username,
		Name:     "Test " + username,
	})
	require.NoError(t, err)
	return user
}

func TestCreateMemoryRequiresOnboarding(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.memories.CreateMemory(context.Background(), "stranger", &dto.CreateMemoryRequest{
		Text: "hello from nowhere",
	})
	assert.ErrorIs(t, err, apperrors.ErrUserNotOnboarded)
}

func TestCreateMemoryEmitsFeedRevalidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.onboard(t, "ext-1", "alice")

	created, err := f.memories.CreateMemory(ctx, "ext-1", &dto.CreateMemoryRequest{Text: "a fine memory"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	assert.Contains(t, f.notifier.Paths(), "/")
}

func TestCreateMemoryStrictCommunityResolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.onboard(t, "ext-1", "alice")

	ghost := "comm_ghost"
	_, err := f.memories.CreateMemory(ctx, "ext-1", &dto.CreateMemoryRequest{
		Text:        "posted into the void",
		CommunityID: &ghost,
	})
	assert.ErrorIs(t, err, apperrors.ErrCommunityNotFound)
}

func TestCreateMemoryLenientCommunityResolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.onboard(t, "ext-1", "alice")

	ghost := "comm_ghost"
	created, err := f.memories.CreateMemory(ctx, "ext-1", &dto.CreateMemoryRequest{
		Text:        "posted without a home",
		CommunityID: &ghost,
	})
	require.NoError(t, err)

	got, err := f.memories.GetMemory(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Community)
}

func TestCreateMemoryInExistingCommunity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.onboard(t, "ext-1", "alice")

	community, err := f.community.CreateCommunity(ctx, "ext-1", &dto.CreateCommunityRequest{Name: "Gophers"})
	require.NoError(t, err)

	created, err := f.memories.CreateMemory(ctx, "ext-1", &dto.CreateMemoryRequest{
		Text:        "hello gophers",
		CommunityID: &community.ExternalID,
	})
	require.NoError(t, err)

	got, err := f.memories.GetMemory(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Community)
	assert.Equal(t, "Gophers", got.Community.Name)
}

func TestAddCommentEmitsThreadRevalidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.onboard(t, "ext-1", "alice")
	f.onboard(t, "ext-2", "bob")

	root, err := f.memories.CreateMemory(ctx, "ext-1", &dto.CreateMemoryRequest{Text: "root memory"})
	require.NoError(t, err)

	comment, err := f.memories.AddComment(ctx, "ext-2", root.ID, &dto.AddCommentRequest{Text: "bob's reply"})
	require.NoError(t, err)
	require.NotZero(t, comment.ID)

	assert.Contains(t, f.notifier.Paths(), "/memory/1")

	thread, err := f.memories.GetMemory(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, thread.Children, 1)
	assert.Equal(t, comment.ID, thread.Children[0].ID)
}

func TestDeleteMemoryOnlyByAuthor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.onboard(t, "ext-1", "alice")
	f.onboard(t, "ext-2", "bob")

	root, err := f.memories.CreateMemory(ctx, "ext-1", &dto.CreateMemoryRequest{Text: "alice's memory"})
	require.NoError(t, err)

	err = f.memories.DeleteMemory(ctx, "ext-2", root.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotMemoryAuthor)

	require.NoError(t, f.memories.DeleteMemory(ctx, "ext-1", root.ID))

	_, err = f.memories.GetMemory(ctx, root.ID)
	assert.ErrorIs(t, err, apperrors.ErrMemoryNotFound)
}

func TestDeleteMemoryCascadesThroughService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.onboard(t, "ext-1", "alice")
	f.onboard(t, "ext-2", "bob")

	root, err := f.memories.CreateMemory(ctx, "ext-1", &dto.CreateMemoryRequest{Text: "root memory"})
	require.NoError(t, err)
	reply, err := f.memories.AddComment(ctx, "ext-2", root.ID, &dto.AddCommentRequest{Text: "a reply"})
	require.NoError(t, err)
	nested, err := f.memories.AddComment(ctx, "ext-1", reply.ID, &dto.AddCommentRequest{Text: "a nested reply"})
	require.NoError(t, err)

	require.NoError(t, f.memories.DeleteMemory(ctx, "ext-1", root.ID))

	for _, id := range []int64{root.ID, reply.ID, nested.ID} {
		_, err := f.memories.GetMemory(ctx, id)
		assert.ErrorIs(t, err, apperrors.ErrMemoryNotFound)
	}

	feed, err := f.memories.GetFeed(ctx, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, feed.Memories)
	assert.Equal(t, int64(0), feed.TotalItems)
}

func TestGetFeedHasMore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.onboard(t, "ext-1", "alice")

	for i := 0; i < 5; i++ {
		_, err := f.memories.CreateMemory(ctx, "ext-1", &dto.CreateMemoryRequest{Text: "one more memory"})
		require.NoError(t, err)
	}

	feed, err := f.memories.GetFeed(ctx, 1, 3)
	require.NoError(t, err)
	assert.Len(t, feed.Memories, 3)
	assert.Equal(t, int64(5), feed.TotalItems)
	assert.True(t, feed.HasMore)

	feed, err = f.memories.GetFeed(ctx, 2, 3)
	require.NoError(t, err)
	assert.Len(t, feed.Memories, 2)
	assert.False(t, feed.HasMore)
}
