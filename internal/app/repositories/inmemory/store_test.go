package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selin/memoria/internal/app/models"
	"github.com/selin/memoria/internal/app/repositories"
	"github.com/selin/memoria/internal/pkg/apperrors"
)

func newTestUser(t *testing.T, s *Store, externalID, username string) *models.User {
	t.Helper()
	user, err := s.Users.Upsert(context.Background(), externalID, repositories.UserProfile{
		Username: username,
		Name:     "Test " + username,
	})
	require.NoError(t, err)
	return user
}

func newTestCommunity(t *testing.T, s *Store, externalID, name string, createdBy int64) *models.Community {
	t.Helper()
	community, err := s.Communities.Create(context.Background(), &models.Community{
		ExternalID: externalID,
		Name:       name,
		CreatedBy:  &createdBy,
	})
	require.NoError(t, err)
	return community
}

func TestCreateAndGetMemory(t *testing.T) {
	ctx := context.Background()
	s := New()
	author := newTestUser(t, s, "ext-1", "Alice")

	created, err := s.Memories.Create(ctx, "first memory", author.ID, nil)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := s.Memories.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "first memory", got.Text)
	assert.Equal(t, author.ID, got.AuthorID)
	require.NotNil(t, got.Author)
	assert.Equal(t, "alice", got.Author.Username)
	assert.Nil(t, got.ParentID)
	assert.Nil(t, got.CommunityID)

	// The author's reverse index picks up the new memory.
	refreshed, err := s.Users.FindByID(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{created.ID}, refreshed.MemoryIDs)
}

func TestCreateMemoryUnknownAuthor(t *testing.T) {
	s := New()
	_, err := s.Memories.Create(context.Background(), "orphan", 99, nil)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestCreateMemoryInCommunity(t *testing.T) {
	ctx := context.Background()
	s := New()
	author := newTestUser(t, s, "ext-1", "alice")
	community := newTestCommunity(t, s, "comm-1", "Gophers", author.ID)

	created, err := s.Memories.Create(ctx, "community memory", author.ID, &community.ID)
	require.NoError(t, err)

	got, err := s.Memories.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Community)
	assert.Equal(t, "Gophers", got.Community.Name)

	posts, err := s.Memories.ListByCommunity(ctx, community.ID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, created.ID, posts[0].ID)
}

func TestFeedOrderingAndPagination(t *testing.T) {
	ctx := context.Background()
	s := New()
	author := newTestUser(t, s, "ext-1", "alice")

	var ids []int64
	for i := 0; i < 5; i++ {
		m, err := s.Memories.Create(ctx, "memory number high enough", author.ID, nil)
		require.NoError(t, err)
		ids = append(ids, m.ID)
		time.Sleep(time.Millisecond)
	}

	// A reply must never surface in the top-level feed.
	_, err := s.Memories.AddComment(ctx, ids[0], "a reply", author.ID)
	require.NoError(t, err)

	page1, total, err := s.Memories.ListTopLevel(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 3)
	assert.Equal(t, ids[4], page1[0].ID)
	assert.Equal(t, ids[3], page1[1].ID)
	assert.Equal(t, ids[2], page1[2].ID)

	page2, total, err := s.Memories.ListTopLevel(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page2, 2)
	assert.Equal(t, ids[1], page2[0].ID)
	assert.Equal(t, ids[0], page2[1].ID)

	empty, total, err := s.Memories.ListTopLevel(ctx, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, empty)
}

func TestFeedPopulatesChildrenWithAuthors(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := newTestUser(t, s, "ext-1", "alice")
	bob := newTestUser(t, s, "ext-2", "bob")

	root, err := s.Memories.Create(ctx, "root memory", alice.ID, nil)
	require.NoError(t, err)
	_, err = s.Memories.AddComment(ctx, root.ID, "bob's reply", bob.ID)
	require.NoError(t, err)

	feed, _, err := s.Memories.ListTopLevel(ctx, 1, 20)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Len(t, feed[0].Children, 1)
	require.NotNil(t, feed[0].Children[0].Author)
	assert.Equal(t, "bob", feed[0].Children[0].Author.Username)
}

func TestAddCommentAppearsInChildrenOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := newTestUser(t, s, "ext-1", "alice")
	bob := newTestUser(t, s, "ext-2", "bob")

	root, err := s.Memories.Create(ctx, "root memory", alice.ID, nil)
	require.NoError(t, err)

	commentID, err := s.Memories.AddComment(ctx, root.ID, "a thoughtful reply", bob.ID)
	require.NoError(t, err)

	got, err := s.Memories.GetByID(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{commentID}, got.ChildIDs)
	require.Len(t, got.Children, 1)
	assert.Equal(t, commentID, got.Children[0].ID)
	require.NotNil(t, got.Children[0].ParentID)
	assert.Equal(t, root.ID, *got.Children[0].ParentID)

	// Comments do not join the author's posts reverse index.
	bobPosts, err := s.Users.ListPosts(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobPosts)
}

func TestAddCommentUnknownParent(t *testing.T) {
	s := New()
	alice := newTestUser(t, s, "ext-1", "alice")
	_, err := s.Memories.AddComment(context.Background(), 404, "lost reply", alice.ID)
	assert.ErrorIs(t, err, apperrors.ErrMemoryNotFound)
}

func TestGetByIDPopulatesTwoLevels(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := newTestUser(t, s, "ext-1", "alice")
	bob := newTestUser(t, s, "ext-2", "bob")

	root, err := s.Memories.Create(ctx, "root memory", alice.ID, nil)
	require.NoError(t, err)
	replyID, err := s.Memories.AddComment(ctx, root.ID, "first level", bob.ID)
	require.NoError(t, err)
	nestedID, err := s.Memories.AddComment(ctx, replyID, "second level", alice.ID)
	require.NoError(t, err)
	deepID, err := s.Memories.AddComment(ctx, nestedID, "third level", bob.ID)
	require.NoError(t, err)

	got, err := s.Memories.GetByID(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, got.Children, 1)
	require.Len(t, got.Children[0].Children, 1)
	assert.Equal(t, nestedID, got.Children[0].Children[0].ID)

	// The third level is referenced but not materialized.
	grandchild := got.Children[0].Children[0]
	assert.Equal(t, []int64{deepID}, grandchild.ChildIDs)
	assert.Empty(t, grandchild.Children)
}

func TestDeleteSubtreeClosureAndPruning(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := newTestUser(t, s, "ext-1", "alice")
	bob := newTestUser(t, s, "ext-2", "bob")
	community := newTestCommunity(t, s, "comm-1", "Gophers", alice.ID)

	root, err := s.Memories.Create(ctx, "root memory", alice.ID, &community.ID)
	require.NoError(t, err)
	keep, err := s.Memories.Create(ctx, "unrelated memory", alice.ID, &community.ID)
	require.NoError(t, err)

	replyID, err := s.Memories.AddComment(ctx, root.ID, "bob's reply", bob.ID)
	require.NoError(t, err)
	nestedID, err := s.Memories.AddComment(ctx, replyID, "nested reply", alice.ID)
	require.NoError(t, err)

	require.NoError(t, s.Memories.DeleteSubtree(ctx, root.ID))

	for _, id := range []int64{root.ID, replyID, nestedID} {
		_, err := s.Memories.GetByID(ctx, id)
		assert.ErrorIs(t, err, apperrors.ErrMemoryNotFound)
	}

	// The unrelated memory and the reverse indexes survive intact.
	_, err = s.Memories.GetByID(ctx, keep.ID)
	require.NoError(t, err)

	aliceAfter, err := s.Users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{keep.ID}, aliceAfter.MemoryIDs)

	communityAfter, err := s.Communities.FindByID(ctx, community.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{keep.ID}, communityAfter.MemoryIDs)

	// Deleting again reports not found and changes nothing.
	err = s.Memories.DeleteSubtree(ctx, root.ID)
	assert.ErrorIs(t, err, apperrors.ErrMemoryNotFound)

	feed, total, err := s.Memories.ListTopLevel(ctx, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, feed, 1)
	assert.Equal(t, keep.ID, feed[0].ID)
}

func TestDeleteCommentPrunesParentChildList(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := newTestUser(t, s, "ext-1", "alice")
	bob := newTestUser(t, s, "ext-2", "bob")

	root, err := s.Memories.Create(ctx, "root memory", alice.ID, nil)
	require.NoError(t, err)
	firstID, err := s.Memories.AddComment(ctx, root.ID, "first reply", bob.ID)
	require.NoError(t, err)
	secondID, err := s.Memories.AddComment(ctx, root.ID, "second reply", bob.ID)
	require.NoError(t, err)

	require.NoError(t, s.Memories.DeleteSubtree(ctx, firstID))

	got, err := s.Memories.GetByID(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{secondID}, got.ChildIDs)
}

func TestUpsertUserCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, err := s.Users.Upsert(ctx, "ext-1", repositories.UserProfile{
		Username: "Alice",
		Name:     "Alice A",
		Bio:      "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", first.Username)
	assert.True(t, first.Onboarded)

	second, err := s.Users.Upsert(ctx, "ext-1", repositories.UserProfile{
		Username: "alice",
		Name:     "Alice B",
		Bio:      "updated",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Alice B", second.Name)
	assert.Equal(t, "updated", second.Bio)
}

func TestUpsertUsernameConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	newTestUser(t, s, "ext-1", "alice")

	_, err := s.Users.Upsert(ctx, "ext-2", repositories.UserProfile{Username: "ALICE"})
	assert.ErrorIs(t, err, apperrors.ErrUsernameTaken)
}

func TestFindByExternalIDMissingReturnsNil(t *testing.T) {
	s := New()
	user, err := s.Users.FindByExternalID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSearchUsersExcludesCaller(t *testing.T) {
	ctx := context.Background()
	s := New()
	newTestUser(t, s, "ext-1", "alice")
	newTestUser(t, s, "ext-2", "alicia")
	newTestUser(t, s, "ext-3", "bob")

	users, total, err := s.Users.Search(ctx, repositories.UserSearchParams{
		ExcludeExternalID: "ext-1",
		Search:            "ali",
		Page:              1,
		PageSize:          20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	assert.Equal(t, "alicia", users[0].Username)

	// Empty search matches everyone but the caller.
	users, total, err = s.Users.Search(ctx, repositories.UserSearchParams{
		ExcludeExternalID: "ext-1",
		Page:              1,
		PageSize:          20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, users, 2)
}

func TestSearchMatchesNameCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Users.Upsert(ctx, "ext-1", repositories.UserProfile{
		Username: "gopher42",
		Name:     "Grace Hopper",
	})
	require.NoError(t, err)

	users, total, err := s.Users.Search(ctx, repositories.UserSearchParams{
		ExcludeExternalID: "someone-else",
		Search:            "HOPPER",
		Page:              1,
		PageSize:          20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	assert.Equal(t, "gopher42", users[0].Username)
}

func TestListActivityExcludesSelfReplies(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := newTestUser(t, s, "ext-1", "alice")
	bob := newTestUser(t, s, "ext-2", "bob")

	root, err := s.Memories.Create(ctx, "alice's memory", alice.ID, nil)
	require.NoError(t, err)

	bobReplyID, err := s.Memories.AddComment(ctx, root.ID, "bob replying", bob.ID)
	require.NoError(t, err)
	_, err = s.Memories.AddComment(ctx, root.ID, "alice replying to herself", alice.ID)
	require.NoError(t, err)

	activity, err := s.Users.ListActivity(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, bobReplyID, activity[0].ID)
	require.NotNil(t, activity[0].Author)
	assert.Equal(t, "bob", activity[0].Author.Username)
}

func TestListPostsPreservesIndexOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := newTestUser(t, s, "ext-1", "alice")

	first, err := s.Memories.Create(ctx, "first memory", alice.ID, nil)
	require.NoError(t, err)
	second, err := s.Memories.Create(ctx, "second memory", alice.ID, nil)
	require.NoError(t, err)

	posts, err := s.Users.ListPosts(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, first.ID, posts[0].ID)
	assert.Equal(t, second.ID, posts[1].ID)
}

func TestRefOpsAreTolerant(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := newTestUser(t, s, "ext-1", "alice")

	// Double append keeps a single reference.
	require.NoError(t, s.Users.AppendMemoryRef(ctx, alice.ID, 7))
	require.NoError(t, s.Users.AppendMemoryRef(ctx, alice.ID, 7))
	user, err := s.Users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, user.MemoryIDs)

	// Removing absent ids and targeting unknown users are both no-ops.
	require.NoError(t, s.Users.RemoveMemoryRefs(ctx, alice.ID, []int64{99}))
	require.NoError(t, s.Users.AppendMemoryRef(ctx, 404, 7))
	require.NoError(t, s.Users.RemoveMemoryRefs(ctx, 404, []int64{7}))

	user, err = s.Users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, user.MemoryIDs)
}

func TestCommunityLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice := newTestUser(t, s, "ext-1", "alice")
	bob := newTestUser(t, s, "ext-2", "bob")
	community := newTestCommunity(t, s, "comm-1", "Gophers", alice.ID)

	// Creator is the first member on both sides of the relation.
	found, err := s.Communities.FindByExternalID(ctx, "comm-1")
	require.NoError(t, err)
	assert.Equal(t, []int64{alice.ID}, found.MemberIDs)
	require.Len(t, found.Members, 1)

	aliceAfter, err := s.Users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{community.ID}, aliceAfter.CommunityIDs)

	// Join and double join.
	require.NoError(t, s.Communities.AddMember(ctx, community.ID, bob.ID))
	err = s.Communities.AddMember(ctx, community.ID, bob.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyMember)

	// Leave and double leave.
	require.NoError(t, s.Communities.RemoveMember(ctx, community.ID, bob.ID))
	err = s.Communities.RemoveMember(ctx, community.ID, bob.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotMember)

	bobAfter, err := s.Users.FindByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobAfter.CommunityIDs)

	// Duplicate names are rejected.
	_, err = s.Communities.Create(ctx, &models.Community{ExternalID: "comm-2", Name: "Gophers"})
	assert.ErrorIs(t, err, apperrors.ErrCommunityAlreadyExists)

	id, err := s.Communities.ResolveExternalID(ctx, "comm-1")
	require.NoError(t, err)
	assert.Equal(t, community.ID, id)

	_, err = s.Communities.ResolveExternalID(ctx, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrCommunityNotFound)
}
