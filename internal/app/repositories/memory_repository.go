package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/selin/memoria/internal/app/models"
	"github.com/selin/memoria/internal/db"
	"github.com/selin/memoria/internal/pkg/apperrors"
	"github.com/selin/memoria/internal/pkg/dberrors"
	"github.com/selin/memoria/internal/pkg/helpers"
)

const memoryColumns = "id, text, author_id, community_id, parent_id, children, created_at"

// pruneUserMemoryRefsSQL removes a set of memory ids from the reverse index
// of every listed user, preserving the order of the remaining ids.
const pruneUserMemoryRefsSQL = `
	UPDATE users SET memory_ids = (
		SELECT COALESCE(array_agg(x ORDER BY ord), '{}')
		FROM unnest(memory_ids) WITH ORDINALITY AS t(x, ord)
		WHERE x <> ALL($2::BIGINT[])
	), updated_at = NOW()
	WHERE id = ANY($1)`

const pruneCommunityMemoryRefsSQL = `
	UPDATE communities SET memory_ids = (
		SELECT COALESCE(array_agg(x ORDER BY ord), '{}')
		FROM unnest(memory_ids) WITH ORDINALITY AS t(x, ord)
		WHERE x <> ALL($2::BIGINT[])
	)
	WHERE id = ANY($1)`

const pruneChildRefSQL = `
	UPDATE memories SET children = (
		SELECT COALESCE(array_agg(x ORDER BY ord), '{}')
		FROM unnest(children) WITH ORDINALITY AS t(x, ord)
		WHERE x <> $2
	)
	WHERE id = $1`

// PostgresMemoryRepository handles database operations for memories.
type PostgresMemoryRepository struct {
	db          *db.PostgresDB
	users       *PostgresUserRepository
	communities *PostgresCommunityRepository
}

// NewPostgresMemoryRepository creates a new PostgresMemoryRepository.
func NewPostgresMemoryRepository(database *db.PostgresDB, users *PostgresUserRepository, communities *PostgresCommunityRepository) *PostgresMemoryRepository {
	return &PostgresMemoryRepository{db: database, users: users, communities: communities}
}

// storeErr wraps a query failure with an operation message, classifying
// connection-level failures as ErrStoreUnavailable.
func storeErr(err error, op string) error {
	if dberrors.IsConnectionError(err) {
		return apperrors.NewStoreError(err, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanMemory(row pgx.Row) (*models.Memory, error) {
	var m models.Memory
	err := row.Scan(&m.ID, &m.Text, &m.AuthorID, &m.CommunityID, &m.ParentID, &m.ChildIDs, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMemoryRows(rows pgx.Rows) ([]*models.Memory, error) {
	defer rows.Close()

	var memories []*models.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// fetchMemoriesByIDs returns the memories for the given ids in the order the
// ids were supplied. Missing ids are skipped silently.
func fetchMemoriesByIDs(ctx context.Context, q Querier, ids []int64) ([]*models.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := q.Query(ctx, "SELECT "+memoryColumns+" FROM memories WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}
	fetched, err := scanMemoryRows(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Memory, len(fetched))
	for _, m := range fetched {
		byID[m.ID] = m
	}

	ordered := make([]*models.Memory, 0, len(fetched))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			ordered = append(ordered, m)
		}
	}
	return ordered, nil
}

// loadMemoryAuthors populates the Author relation on the given memories.
func loadMemoryAuthors(ctx context.Context, q Querier, memories []*models.Memory) error {
	if len(memories) == 0 {
		return nil
	}

	seen := make(map[int64]struct{})
	var authorIDs []int64
	for _, m := range memories {
		if _, ok := seen[m.AuthorID]; !ok {
			seen[m.AuthorID] = struct{}{}
			authorIDs = append(authorIDs, m.AuthorID)
		}
	}

	rows, err := q.Query(ctx, "SELECT "+userColumns+" FROM users WHERE id = ANY($1)", authorIDs)
	if err != nil {
		return err
	}
	users, err := scanUserRows(rows)
	if err != nil {
		return err
	}

	byID := make(map[int64]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, m := range memories {
		m.Author = byID[m.AuthorID]
	}
	return nil
}

// attachChildren populates one level of the Children relation on the given
// memories, following each parent's authoritative child id list. It returns
// the fetched children so callers can populate authors or recurse.
func attachChildren(ctx context.Context, q Querier, parents []*models.Memory) ([]*models.Memory, error) {
	var childIDs []int64
	for _, p := range parents {
		childIDs = append(childIDs, p.ChildIDs...)
	}
	if len(childIDs) == 0 {
		return nil, nil
	}

	children, err := fetchMemoriesByIDs(ctx, q, childIDs)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Memory, len(children))
	for _, c := range children {
		byID[c.ID] = c
	}
	for _, p := range parents {
		p.Children = nil
		for _, id := range p.ChildIDs {
			if c, ok := byID[id]; ok {
				p.Children = append(p.Children, c)
			}
		}
	}
	return children, nil
}

// ListTopLevel retrieves a page of top-level memories, newest first, with
// authors and one level of replies populated.
func (r *PostgresMemoryRepository) ListTopLevel(ctx context.Context, page, pageSize int) ([]*models.Memory, int64, error) {
	offset, limit := helpers.CalculateOffsetLimit(page, pageSize)

	sqlStr, args, err := squirrel.Select(memoryColumns).
		From("memories").
		Where("parent_id IS NULL").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(offset).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build feed query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, storeErr(err, "failed to list memories")
	}
	memories, err := scanMemoryRows(rows)
	if err != nil {
		return nil, 0, storeErr(err, "failed to list memories")
	}

	var total int64
	err = r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM memories WHERE parent_id IS NULL").Scan(&total)
	if err != nil {
		return nil, 0, storeErr(err, "failed to count memories")
	}

	children, err := attachChildren(ctx, r.db.Pool, memories)
	if err != nil {
		return nil, 0, storeErr(err, "failed to load replies")
	}
	if err := loadMemoryAuthors(ctx, r.db.Pool, append(memories, children...)); err != nil {
		return nil, 0, storeErr(err, "failed to load authors")
	}

	return memories, total, nil
}

// Create inserts a new top-level memory and updates the author's and, when
// set, the community's reverse index in the same transaction.
func (r *PostgresMemoryRepository) Create(ctx context.Context, text string, authorID int64, communityID *int64) (*models.Memory, error) {
	var created *models.Memory

	err := r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			"INSERT INTO memories (text, author_id, community_id) VALUES ($1, $2, $3) RETURNING "+memoryColumns,
			text, authorID, communityID)

		m, err := scanMemory(row)
		if err != nil {
			return err
		}

		if err := r.users.appendMemoryRef(ctx, tx, authorID, m.ID); err != nil {
			return err
		}
		if communityID != nil {
			if err := r.communities.appendMemoryRef(ctx, tx, *communityID, m.ID); err != nil {
				return err
			}
		}

		created = m
		return nil
	})
	if err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return nil, apperrors.NewCustomError(apperrors.ErrUserNotFound, "failed to create memory: author does not exist")
		}
		return nil, storeErr(err, "failed to create memory")
	}

	return created, nil
}

// GetByID retrieves a memory with its author, community and two levels of
// replies populated.
func (r *PostgresMemoryRepository) GetByID(ctx context.Context, id int64) (*models.Memory, error) {
	row := r.db.Pool.QueryRow(ctx, "SELECT "+memoryColumns+" FROM memories WHERE id = $1", id)
	memory, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMemoryNotFound
		}
		return nil, storeErr(err, "failed to fetch memory")
	}

	if memory.CommunityID != nil {
		community, err := r.communities.FindByID(ctx, *memory.CommunityID)
		if err != nil && !errors.Is(err, apperrors.ErrCommunityNotFound) {
			return nil, err
		}
		memory.Community = community
	}

	children, err := attachChildren(ctx, r.db.Pool, []*models.Memory{memory})
	if err != nil {
		return nil, storeErr(err, "failed to load replies")
	}
	grandchildren, err := attachChildren(ctx, r.db.Pool, children)
	if err != nil {
		return nil, storeErr(err, "failed to load nested replies")
	}

	all := append([]*models.Memory{memory}, children...)
	all = append(all, grandchildren...)
	if err := loadMemoryAuthors(ctx, r.db.Pool, all); err != nil {
		return nil, storeErr(err, "failed to load authors")
	}

	return memory, nil
}

// AddComment creates a reply under parentID and appends its id to the
// parent's child list in the same transaction.
func (r *PostgresMemoryRepository) AddComment(ctx context.Context, parentID int64, text string, authorID int64) (int64, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM memories WHERE id = $1)", parentID).Scan(&exists)
	if err != nil {
		return 0, storeErr(err, "failed to fetch parent memory")
	}
	if !exists {
		return 0, apperrors.ErrMemoryNotFound
	}

	var commentID int64
	err = r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			"INSERT INTO memories (text, author_id, parent_id) VALUES ($1, $2, $3) RETURNING id",
			text, authorID, parentID).Scan(&commentID)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			"UPDATE memories SET children = array_append(children, $2) WHERE id = $1",
			parentID, commentID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// Parent vanished between the existence check and the update.
			return apperrors.ErrMemoryNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrMemoryNotFound) {
			return 0, err
		}
		return 0, storeErr(err, "failed to add comment to memory")
	}

	return commentID, nil
}

// DeleteSubtree removes the memory and every reachable descendant, then
// prunes the deleted ids from all affected reverse indexes. Descendants are
// discovered iteratively; a visited set guards against cycles, which should
// not occur by construction.
func (r *PostgresMemoryRepository) DeleteSubtree(ctx context.Context, id int64) error {
	var rootParentID *int64
	var rootAuthorID int64
	var rootCommunityID *int64
	err := r.db.Pool.QueryRow(ctx,
		"SELECT parent_id, author_id, community_id FROM memories WHERE id = $1", id).
		Scan(&rootParentID, &rootAuthorID, &rootCommunityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrMemoryNotFound
		}
		return storeErr(err, "failed to fetch memory")
	}

	visited := map[int64]struct{}{id: {}}
	deleteIDs := []int64{id}
	authorSet := map[int64]struct{}{rootAuthorID: {}}
	communitySet := map[int64]struct{}{}
	if rootCommunityID != nil {
		communitySet[*rootCommunityID] = struct{}{}
	}

	frontier := []int64{id}
	for len(frontier) > 0 {
		rows, err := r.db.Pool.Query(ctx,
			"SELECT id, author_id, community_id FROM memories WHERE parent_id = ANY($1)", frontier)
		if err != nil {
			return storeErr(err, "failed to discover descendants")
		}

		var next []int64
		for rows.Next() {
			var childID, authorID int64
			var communityID *int64
			if err := rows.Scan(&childID, &authorID, &communityID); err != nil {
				rows.Close()
				return storeErr(err, "failed to discover descendants")
			}
			if _, ok := visited[childID]; ok {
				continue
			}
			visited[childID] = struct{}{}
			deleteIDs = append(deleteIDs, childID)
			authorSet[authorID] = struct{}{}
			if communityID != nil {
				communitySet[*communityID] = struct{}{}
			}
			next = append(next, childID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return storeErr(err, "failed to discover descendants")
		}
		frontier = next
	}

	authorIDs := make([]int64, 0, len(authorSet))
	for authorID := range authorSet {
		authorIDs = append(authorIDs, authorID)
	}
	communityIDs := make([]int64, 0, len(communitySet))
	for communityID := range communitySet {
		communityIDs = append(communityIDs, communityID)
	}

	err = r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM memories WHERE id = ANY($1)", deleteIDs); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, pruneUserMemoryRefsSQL, authorIDs, deleteIDs); err != nil {
			return err
		}
		if len(communityIDs) > 0 {
			if _, err := tx.Exec(ctx, pruneCommunityMemoryRefsSQL, communityIDs, deleteIDs); err != nil {
				return err
			}
		}
		if rootParentID != nil {
			// The root was itself a reply; drop it from its parent's list.
			if _, err := tx.Exec(ctx, pruneChildRefSQL, *rootParentID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr(err, "failed to delete memory subtree")
	}

	return nil
}

// ListByCommunity returns a community's memories in reverse-index order with
// authors and one level of replies populated.
func (r *PostgresMemoryRepository) ListByCommunity(ctx context.Context, communityID int64) ([]*models.Memory, error) {
	var memoryIDs []int64
	err := r.db.Pool.QueryRow(ctx, "SELECT memory_ids FROM communities WHERE id = $1", communityID).Scan(&memoryIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCommunityNotFound
		}
		return nil, storeErr(err, "failed to fetch community")
	}

	memories, err := fetchMemoriesByIDs(ctx, r.db.Pool, memoryIDs)
	if err != nil {
		return nil, storeErr(err, "failed to list community memories")
	}

	children, err := attachChildren(ctx, r.db.Pool, memories)
	if err != nil {
		return nil, storeErr(err, "failed to load replies")
	}
	if err := loadMemoryAuthors(ctx, r.db.Pool, append(memories, children...)); err != nil {
		return nil, storeErr(err, "failed to load authors")
	}

	return memories, nil
}
