package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/selin/memoria/internal/app/models"
	"github.com/selin/memoria/internal/db"
)

// Querier is the subset of pgx operations repositories need. It is satisfied
// by both *pgxpool.Pool and pgx.Tx, so reverse-index maintenance can run
// inside the transaction of the operation that triggered it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserProfile holds the profile fields of an onboarding upsert.
type UserProfile struct {
	Username string
	Name     string
	Bio      string
	Image    string
}

// UserSearchParams holds parameters for user search with pagination.
type UserSearchParams struct {
	ExcludeExternalID string
	Search            string
	Page              int
	PageSize          int
	SortOrder         string // "asc" or "desc" by creation time; defaults to "desc"
}

// MemoryRepository handles CRUD and traversal over the memories collection.
type MemoryRepository interface {
	// ListTopLevel returns a page of memories without a parent, newest
	// first, with authors and direct children (and child authors)
	// populated. The second return value is the total top-level count.
	ListTopLevel(ctx context.Context, page, pageSize int) ([]*models.Memory, int64, error)

	// Create inserts a new top-level memory with an empty child list and
	// appends its id to the author's reverse index and, when communityID is
	// non-nil, to the community's, all in one transaction.
	Create(ctx context.Context, text string, authorID int64, communityID *int64) (*models.Memory, error)

	// GetByID returns the memory with author, community and two levels of
	// replies populated (each reply with its author).
	GetByID(ctx context.Context, id int64) (*models.Memory, error)

	// AddComment creates a reply under parentID and appends it to the
	// parent's child list. Returns the new memory's id.
	AddComment(ctx context.Context, parentID int64, text string, authorID int64) (int64, error)

	// DeleteSubtree removes the memory and every transitively reachable
	// descendant, pruning all deleted ids from author and community
	// reverse indexes. A second call for the same id reports not found.
	DeleteSubtree(ctx context.Context, id int64) error

	// ListByCommunity returns the memories posted under a community in
	// reverse-index order, authors populated.
	ListByCommunity(ctx context.Context, communityID int64) ([]*models.Memory, error)
}

// UserRepository handles users and their reverse indexes.
type UserRepository interface {
	// FindByExternalID returns the user with communities populated, or
	// (nil, nil) when no such user exists. Absence is not an error here;
	// the caller decides whether it is (e.g. "not onboarded yet").
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)

	// FindByID returns the user or ErrUserNotFound.
	FindByID(ctx context.Context, id int64) (*models.User, error)

	// Upsert creates or updates the user keyed by external id, lowercases
	// the username and marks the user onboarded. Idempotent.
	Upsert(ctx context.Context, externalID string, profile UserProfile) (*models.User, error)

	// Search matches username or name case-insensitively, excluding the
	// caller. An empty search string matches everyone else. The second
	// return value is the total match count.
	Search(ctx context.Context, params UserSearchParams) ([]*models.User, int64, error)

	// ListActivity returns replies other users left on the user's
	// memories, authors populated. Self-replies are excluded.
	ListActivity(ctx context.Context, userID int64) ([]*models.Memory, error)

	// ListPosts returns the user's memories in reverse-index order with
	// community and direct children populated.
	ListPosts(ctx context.Context, userID int64) ([]*models.Memory, error)

	// AppendMemoryRef and RemoveMemoryRefs maintain the reverse index.
	// Both are no-ops when the id is already present/absent.
	AppendMemoryRef(ctx context.Context, userID, memoryID int64) error
	RemoveMemoryRefs(ctx context.Context, userID int64, memoryIDs []int64) error

	// AddCommunityRef and RemoveCommunityRef maintain the membership list.
	AddCommunityRef(ctx context.Context, userID, communityID int64) error
	RemoveCommunityRef(ctx context.Context, userID, communityID int64) error
}

// CommunityRepository handles communities and their reverse indexes.
type CommunityRepository interface {
	// ResolveExternalID maps a community's external id to its internal id
	// or fails with ErrCommunityNotFound.
	ResolveExternalID(ctx context.Context, externalID string) (int64, error)

	// FindByID returns the community or ErrCommunityNotFound.
	FindByID(ctx context.Context, id int64) (*models.Community, error)

	// FindByExternalID returns the community with members populated.
	FindByExternalID(ctx context.Context, externalID string) (*models.Community, error)

	// Create inserts a community; the creator becomes its first member and
	// gains a membership reference, in one transaction.
	Create(ctx context.Context, community *models.Community) (*models.Community, error)

	// List returns a page of communities filtered by an optional
	// case-insensitive name search, plus the total match count.
	List(ctx context.Context, search string, page, pageSize int) ([]*models.Community, int64, error)

	// AddMember and RemoveMember maintain membership on both sides.
	AddMember(ctx context.Context, communityID, userID int64) error
	RemoveMember(ctx context.Context, communityID, userID int64) error

	// AppendMemoryRef and RemoveMemoryRefs maintain the reverse index.
	AppendMemoryRef(ctx context.Context, communityID, memoryID int64) error
	RemoveMemoryRefs(ctx context.Context, communityID int64, memoryIDs []int64) error
}

// Repositories holds all the repository instances
type Repositories struct {
	MemoryRepository    MemoryRepository
	UserRepository      UserRepository
	CommunityRepository CommunityRepository
}

// NewRepositories initializes all repositories against the given database.
func NewRepositories(database *db.PostgresDB) *Repositories {
	users := NewPostgresUserRepository(database)
	communities := NewPostgresCommunityRepository(database, users)
	return &Repositories{
		MemoryRepository:    NewPostgresMemoryRepository(database, users, communities),
		UserRepository:      users,
		CommunityRepository: communities,
	}
}
