package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/selin/memoria/internal/app/models"
	"github.com/selin/memoria/internal/app/repositories"
	"github.com/selin/memoria/internal/pkg/apperrors"
	"github.com/selin/memoria/internal/pkg/helpers"
)

// Store is an in-memory backing store for the repository interfaces. It
// mirrors the semantics of the postgres implementations, including the
// denormalized reverse indexes, and is used by tests and local tooling.
//
// The repository surfaces are exposed through the Memories, Users and
// Communities facades, which share the store's state and lock.
type Store struct {
	mu sync.RWMutex

	users           map[int64]*models.User
	usersByExternal map[string]int64
	memories        map[int64]*models.Memory
	communities     map[int64]*models.Community
	commByExternal  map[string]int64
	nextUserID      int64
	nextMemoryID    int64
	nextCommunityID int64

	Memories    *MemoryStore
	Users       *UserStore
	Communities *CommunityStore
}

// MemoryStore implements repositories.MemoryRepository over a Store.
type MemoryStore struct{ s *Store }

// UserStore implements repositories.UserRepository over a Store.
type UserStore struct{ s *Store }

// CommunityStore implements repositories.CommunityRepository over a Store.
type CommunityStore struct{ s *Store }

// New creates a new empty in-memory store.
func New() *Store {
	s := &Store{
		users:           make(map[int64]*models.User),
		usersByExternal: make(map[string]int64),
		memories:        make(map[int64]*models.Memory),
		communities:     make(map[int64]*models.Community),
		commByExternal:  make(map[string]int64),
	}
	s.Memories = &MemoryStore{s: s}
	s.Users = &UserStore{s: s}
	s.Communities = &CommunityStore{s: s}
	return s
}

// Interface checks
var (
	_ repositories.MemoryRepository    = (*MemoryStore)(nil)
	_ repositories.UserRepository      = (*UserStore)(nil)
	_ repositories.CommunityRepository = (*CommunityStore)(nil)
)

func cloneInt64s(ids []int64) []int64 {
	if ids == nil {
		return nil
	}
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

func cloneMemory(m *models.Memory) *models.Memory {
	c := *m
	c.ChildIDs = cloneInt64s(m.ChildIDs)
	c.Author = nil
	c.Community = nil
	c.Children = nil
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.MemoryIDs = cloneInt64s(u.MemoryIDs)
	c.CommunityIDs = cloneInt64s(u.CommunityIDs)
	c.Communities = nil
	return &c
}

func cloneCommunity(c *models.Community) *models.Community {
	out := *c
	out.MemberIDs = cloneInt64s(c.MemberIDs)
	out.MemoryIDs = cloneInt64s(c.MemoryIDs)
	out.Members = nil
	return &out
}

// populate attaches a cloned author and community to a cloned memory. The
// caller must hold at least a read lock.
func (s *Store) populate(m *models.Memory) {
	if author, ok := s.users[m.AuthorID]; ok {
		m.Author = cloneUser(author)
	}
	if m.CommunityID != nil {
		if community, ok := s.communities[*m.CommunityID]; ok {
			m.Community = cloneCommunity(community)
		}
	}
}

// attachChildren populates one level of replies on a cloned memory.
func (s *Store) attachChildren(m *models.Memory) {
	for _, childID := range m.ChildIDs {
		child, ok := s.memories[childID]
		if !ok {
			continue
		}
		cc := cloneMemory(child)
		s.populate(cc)
		m.Children = append(m.Children, cc)
	}
}

// ListTopLevel returns a page of parentless memories, newest first.
func (st *MemoryStore) ListTopLevel(ctx context.Context, page, pageSize int) ([]*models.Memory, int64, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var topLevel []*models.Memory
	for _, m := range s.memories {
		if m.ParentID == nil {
			topLevel = append(topLevel, m)
		}
	}
	sort.Slice(topLevel, func(i, j int) bool {
		return topLevel[i].CreatedAt.After(topLevel[j].CreatedAt)
	})

	total := int64(len(topLevel))
	offset, limit := helpers.CalculateOffsetLimit(page, pageSize)
	start := int(offset)
	if start >= len(topLevel) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(topLevel) {
		end = len(topLevel)
	}

	var out []*models.Memory
	for _, m := range topLevel[start:end] {
		c := cloneMemory(m)
		s.populate(c)
		s.attachChildren(c)
		out = append(out, c)
	}
	return out, total, nil
}

// Create inserts a top-level memory and updates the reverse indexes.
func (st *MemoryStore) Create(ctx context.Context, text string, authorID int64, communityID *int64) (*models.Memory, error) {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	author, ok := s.users[authorID]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}

	s.nextMemoryID++
	m := &models.Memory{
		ID:        s.nextMemoryID,
		Text:      text,
		AuthorID:  authorID,
		CreatedAt: time.Now().UTC(),
	}
	if communityID != nil {
		community, ok := s.communities[*communityID]
		if !ok {
			return nil, apperrors.ErrCommunityNotFound
		}
		id := *communityID
		m.CommunityID = &id
		community.MemoryIDs = append(community.MemoryIDs, m.ID)
	}
	s.memories[m.ID] = m
	author.MemoryIDs = append(author.MemoryIDs, m.ID)

	return cloneMemory(m), nil
}

// GetByID returns a memory with author, community and two levels of replies.
func (st *MemoryStore) GetByID(ctx context.Context, id int64) (*models.Memory, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memories[id]
	if !ok {
		return nil, apperrors.ErrMemoryNotFound
	}

	out := cloneMemory(m)
	s.populate(out)
	s.attachChildren(out)
	for _, child := range out.Children {
		s.attachChildren(child)
	}
	return out, nil
}

// AddComment creates a reply and appends it to the parent's child list.
func (st *MemoryStore) AddComment(ctx context.Context, parentID int64, text string, authorID int64) (int64, error) {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.memories[parentID]
	if !ok {
		return 0, apperrors.ErrMemoryNotFound
	}
	if _, ok := s.users[authorID]; !ok {
		return 0, apperrors.ErrUserNotFound
	}

	s.nextMemoryID++
	pid := parentID
	comment := &models.Memory{
		ID:        s.nextMemoryID,
		Text:      text,
		AuthorID:  authorID,
		ParentID:  &pid,
		CreatedAt: time.Now().UTC(),
	}
	s.memories[comment.ID] = comment
	parent.ChildIDs = append(parent.ChildIDs, comment.ID)

	return comment.ID, nil
}

// DeleteSubtree removes a memory and its reachability closure, pruning every
// affected reverse index. Traversal is iterative with a visited set.
func (st *MemoryStore) DeleteSubtree(ctx context.Context, id int64) error {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.memories[id]
	if !ok {
		return apperrors.ErrMemoryNotFound
	}

	visited := map[int64]struct{}{id: {}}
	deleteIDs := []int64{id}
	frontier := []int64{id}
	for len(frontier) > 0 {
		var next []int64
		for _, m := range s.memories {
			if m.ParentID == nil {
				continue
			}
			for _, fid := range frontier {
				if *m.ParentID != fid {
					continue
				}
				if _, seen := visited[m.ID]; seen {
					continue
				}
				visited[m.ID] = struct{}{}
				deleteIDs = append(deleteIDs, m.ID)
				next = append(next, m.ID)
			}
		}
		frontier = next
	}

	authorSet := make(map[int64]struct{})
	communitySet := make(map[int64]struct{})
	for _, did := range deleteIDs {
		m := s.memories[did]
		authorSet[m.AuthorID] = struct{}{}
		if m.CommunityID != nil {
			communitySet[*m.CommunityID] = struct{}{}
		}
		delete(s.memories, did)
	}

	for authorID := range authorSet {
		if author, ok := s.users[authorID]; ok {
			author.MemoryIDs = helpers.RemoveInt64s(author.MemoryIDs, deleteIDs)
		}
	}
	for communityID := range communitySet {
		if community, ok := s.communities[communityID]; ok {
			community.MemoryIDs = helpers.RemoveInt64s(community.MemoryIDs, deleteIDs)
		}
	}
	if root.ParentID != nil {
		if parent, ok := s.memories[*root.ParentID]; ok {
			parent.ChildIDs = helpers.RemoveInt64s(parent.ChildIDs, []int64{id})
		}
	}

	return nil
}

// ListByCommunity returns a community's memories in reverse-index order.
func (st *MemoryStore) ListByCommunity(ctx context.Context, communityID int64) ([]*models.Memory, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	community, ok := s.communities[communityID]
	if !ok {
		return nil, apperrors.ErrCommunityNotFound
	}

	var out []*models.Memory
	for _, mid := range community.MemoryIDs {
		m, ok := s.memories[mid]
		if !ok {
			continue
		}
		c := cloneMemory(m)
		s.populate(c)
		s.attachChildren(c)
		out = append(out, c)
	}
	return out, nil
}

// FindByExternalID returns the user with communities populated, or nil when
// no account exists for the external id.
func (st *UserStore) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByExternal[externalID]
	if !ok {
		return nil, nil
	}
	user := cloneUser(s.users[id])
	for _, cid := range s.users[id].CommunityIDs {
		if community, ok := s.communities[cid]; ok {
			user.Communities = append(user.Communities, cloneCommunity(community))
		}
	}
	return user, nil
}

// FindByID returns the user or ErrUserNotFound.
func (st *UserStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return cloneUser(user), nil
}

// Upsert creates or updates a user keyed by external id.
func (st *UserStore) Upsert(ctx context.Context, externalID string, profile repositories.UserProfile) (*models.User, error) {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(profile.Username)
	for uid, u := range s.users {
		if u.Username == username && s.usersByExternal[externalID] != uid {
			return nil, apperrors.ErrUsernameTaken
		}
	}

	now := time.Now().UTC()
	id, ok := s.usersByExternal[externalID]
	if !ok {
		s.nextUserID++
		id = s.nextUserID
		s.users[id] = &models.User{
			ID:         id,
			ExternalID: externalID,
			CreatedAt:  now,
		}
		s.usersByExternal[externalID] = id
	}

	user := s.users[id]
	user.Username = username
	user.Name = profile.Name
	user.Bio = profile.Bio
	user.Image = profile.Image
	user.Onboarded = true
	user.UpdatedAt = now

	return cloneUser(user), nil
}

// Search matches username or name case-insensitively, excluding the caller.
func (st *UserStore) Search(ctx context.Context, params repositories.UserSearchParams) ([]*models.User, int64, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(params.Search))

	var matches []*models.User
	for _, u := range s.users {
		if u.ExternalID == params.ExcludeExternalID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.Username), needle) &&
			!strings.Contains(strings.ToLower(u.Name), needle) {
			continue
		}
		matches = append(matches, u)
	}

	asc := strings.EqualFold(params.SortOrder, "asc")
	sort.Slice(matches, func(i, j int) bool {
		if asc {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := int64(len(matches))
	offset, limit := helpers.CalculateOffsetLimit(params.Page, params.PageSize)
	start := int(offset)
	if start >= len(matches) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matches) {
		end = len(matches)
	}

	var out []*models.User
	for _, u := range matches[start:end] {
		out = append(out, cloneUser(u))
	}
	return out, total, nil
}

// ListActivity returns replies other users left on the user's memories.
func (st *UserStore) ListActivity(ctx context.Context, userID int64) ([]*models.Memory, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	// First collect the child ids of every memory the user authored, then
	// filter out the user's own replies.
	var childIDs []int64
	for _, m := range s.memories {
		if m.AuthorID == userID {
			childIDs = append(childIDs, m.ChildIDs...)
		}
	}

	var replies []*models.Memory
	for _, cid := range childIDs {
		child, ok := s.memories[cid]
		if !ok || child.AuthorID == userID {
			continue
		}
		c := cloneMemory(child)
		s.populate(c)
		replies = append(replies, c)
	}
	sort.Slice(replies, func(i, j int) bool {
		return replies[i].CreatedAt.After(replies[j].CreatedAt)
	})
	return replies, nil
}

// ListPosts returns the user's memories in reverse-index order.
func (st *UserStore) ListPosts(ctx context.Context, userID int64) ([]*models.Memory, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}

	var out []*models.Memory
	for _, mid := range user.MemoryIDs {
		m, ok := s.memories[mid]
		if !ok {
			continue
		}
		c := cloneMemory(m)
		s.populate(c)
		s.attachChildren(c)
		out = append(out, c)
	}
	return out, nil
}

// AppendMemoryRef adds a memory id to the user's reverse index.
func (st *UserStore) AppendMemoryRef(ctx context.Context, userID, memoryID int64) error {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil
	}
	if !helpers.Int64SliceContains(user.MemoryIDs, memoryID) {
		user.MemoryIDs = append(user.MemoryIDs, memoryID)
	}
	return nil
}

// RemoveMemoryRefs removes memory ids from the user's reverse index.
func (st *UserStore) RemoveMemoryRefs(ctx context.Context, userID int64, memoryIDs []int64) error {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[userID]; ok {
		user.MemoryIDs = helpers.RemoveInt64s(user.MemoryIDs, memoryIDs)
	}
	return nil
}

// AddCommunityRef adds a membership reference to the user.
func (st *UserStore) AddCommunityRef(ctx context.Context, userID, communityID int64) error {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil
	}
	if !helpers.Int64SliceContains(user.CommunityIDs, communityID) {
		user.CommunityIDs = append(user.CommunityIDs, communityID)
	}
	return nil
}

// RemoveCommunityRef drops a membership reference from the user.
func (st *UserStore) RemoveCommunityRef(ctx context.Context, userID, communityID int64) error {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[userID]; ok {
		user.CommunityIDs = helpers.RemoveInt64s(user.CommunityIDs, []int64{communityID})
	}
	return nil
}

// ResolveExternalID maps a community's external id to its internal id.
func (st *CommunityStore) ResolveExternalID(ctx context.Context, externalID string) (int64, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.commByExternal[externalID]
	if !ok {
		return 0, apperrors.ErrCommunityNotFound
	}
	return id, nil
}

// FindByID returns the community or ErrCommunityNotFound.
func (st *CommunityStore) FindByID(ctx context.Context, id int64) (*models.Community, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	community, ok := s.communities[id]
	if !ok {
		return nil, apperrors.ErrCommunityNotFound
	}
	return cloneCommunity(community), nil
}

// FindByExternalID returns the community with members populated.
func (st *CommunityStore) FindByExternalID(ctx context.Context, externalID string) (*models.Community, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.commByExternal[externalID]
	if !ok {
		return nil, apperrors.ErrCommunityNotFound
	}
	community := cloneCommunity(s.communities[id])
	for _, uid := range s.communities[id].MemberIDs {
		if member, ok := s.users[uid]; ok {
			community.Members = append(community.Members, cloneUser(member))
		}
	}
	return community, nil
}

// Create inserts a community; the creator becomes its first member.
func (st *CommunityStore) Create(ctx context.Context, community *models.Community) (*models.Community, error) {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.communities {
		if c.Name == community.Name {
			return nil, apperrors.ErrCommunityAlreadyExists
		}
	}

	s.nextCommunityID++
	c := &models.Community{
		ID:         s.nextCommunityID,
		ExternalID: community.ExternalID,
		Name:       community.Name,
		Image:      community.Image,
		CreatedBy:  community.CreatedBy,
		CreatedAt:  time.Now().UTC(),
	}
	if community.CreatedBy != nil {
		c.MemberIDs = []int64{*community.CreatedBy}
		if creator, ok := s.users[*community.CreatedBy]; ok {
			creator.CommunityIDs = append(creator.CommunityIDs, c.ID)
		}
	}
	s.communities[c.ID] = c
	s.commByExternal[c.ExternalID] = c.ID

	return cloneCommunity(c), nil
}

// List returns a page of communities filtered by name.
func (st *CommunityStore) List(ctx context.Context, search string, page, pageSize int) ([]*models.Community, int64, error) {
	s := st.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))

	var matches []*models.Community
	for _, c := range s.communities {
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		matches = append(matches, c)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := int64(len(matches))
	offset, limit := helpers.CalculateOffsetLimit(page, pageSize)
	start := int(offset)
	if start >= len(matches) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matches) {
		end = len(matches)
	}

	var out []*models.Community
	for _, c := range matches[start:end] {
		out = append(out, cloneCommunity(c))
	}
	return out, total, nil
}

// AddMember adds a user to the community, maintaining both sides.
func (st *CommunityStore) AddMember(ctx context.Context, communityID, userID int64) error {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	community, ok := s.communities[communityID]
	if !ok {
		return apperrors.ErrCommunityNotFound
	}
	if helpers.Int64SliceContains(community.MemberIDs, userID) {
		return apperrors.ErrAlreadyMember
	}
	community.MemberIDs = append(community.MemberIDs, userID)
	if user, ok := s.users[userID]; ok {
		if !helpers.Int64SliceContains(user.CommunityIDs, communityID) {
			user.CommunityIDs = append(user.CommunityIDs, communityID)
		}
	}
	return nil
}

// RemoveMember removes a user from the community, maintaining both sides.
func (st *CommunityStore) RemoveMember(ctx context.Context, communityID, userID int64) error {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	community, ok := s.communities[communityID]
	if !ok {
		return apperrors.ErrCommunityNotFound
	}
	if !helpers.Int64SliceContains(community.MemberIDs, userID) {
		return apperrors.ErrNotMember
	}
	community.MemberIDs = helpers.RemoveInt64s(community.MemberIDs, []int64{userID})
	if user, ok := s.users[userID]; ok {
		user.CommunityIDs = helpers.RemoveInt64s(user.CommunityIDs, []int64{communityID})
	}
	return nil
}

// AppendMemoryRef adds a memory id to the community's reverse index.
func (st *CommunityStore) AppendMemoryRef(ctx context.Context, communityID, memoryID int64) error {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	community, ok := s.communities[communityID]
	if !ok {
		return nil
	}
	if !helpers.Int64SliceContains(community.MemoryIDs, memoryID) {
		community.MemoryIDs = append(community.MemoryIDs, memoryID)
	}
	return nil
}

// RemoveMemoryRefs removes memory ids from the community's reverse index.
func (st *CommunityStore) RemoveMemoryRefs(ctx context.Context, communityID int64, memoryIDs []int64) error {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if community, ok := s.communities[communityID]; ok {
		community.MemoryIDs = helpers.RemoveInt64s(community.MemoryIDs, memoryIDs)
	}
	return nil
}
