package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/selin/memoria/internal/app/models"
	"github.com/selin/memoria/internal/db"
	"github.com/selin/memoria/internal/pkg/apperrors"
	"github.com/selin/memoria/internal/pkg/dberrors"
	"github.com/selin/memoria/internal/pkg/helpers"
)

const userColumns = "id, external_id, username, name, bio, image, onboarded, memory_ids, community_ids, created_at, updated_at"

// PostgresUserRepository handles database operations for users.
type PostgresUserRepository struct {
	db *db.PostgresDB
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(database *db.PostgresDB) *PostgresUserRepository {
	return &PostgresUserRepository{db: database}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Username, &u.Name, &u.Bio, &u.Image,
		&u.Onboarded, &u.MemoryIDs, &u.CommunityIDs, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FindByExternalID retrieves a user by the identity provider's id with
// community memberships populated. Returns (nil, nil) when no user exists.
func (r *PostgresUserRepository) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	row := r.db.Pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE external_id = $1", externalID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr(err, "failed to fetch user")
	}

	if len(user.CommunityIDs) > 0 {
		rows, err := r.db.Pool.Query(ctx,
			"SELECT "+communityColumns+" FROM communities WHERE id = ANY($1)", user.CommunityIDs)
		if err != nil {
			return nil, storeErr(err, "failed to fetch user communities")
		}
		communities, err := scanCommunityRows(rows)
		if err != nil {
			return nil, storeErr(err, "failed to fetch user communities")
		}
		user.Communities = communities
	}

	return user, nil
}

// FindByID retrieves a user by internal id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.Pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, storeErr(err, "failed to fetch user")
	}
	return user, nil
}

// Upsert creates or updates a user keyed by external id. The username is
// normalized to lowercase and the user is marked onboarded. Calling it again
// with identical input changes nothing.
func (r *PostgresUserRepository) Upsert(ctx context.Context, externalID string, profile UserProfile) (*models.User, error) {
	row := r.db.Pool.QueryRow(ctx, `
		INSERT INTO users (external_id, username, name, bio, image, onboarded)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (external_id) DO UPDATE SET
			username = EXCLUDED.username,
			name = EXCLUDED.name,
			bio = EXCLUDED.bio,
			image = EXCLUDED.image,
			onboarded = TRUE,
			updated_at = NOW()
		RETURNING `+userColumns,
		externalID, strings.ToLower(profile.Username), profile.Name, profile.Bio, profile.Image)

	user, err := scanUser(row)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "users_username_key") {
			return nil, apperrors.ErrUsernameTaken
		}
		return nil, storeErr(err, "failed to create/update user")
	}
	return user, nil
}

// Search retrieves a page of users matching the search string against
// username or name, case-insensitively, excluding the caller. An empty
// search string matches all other users.
func (r *PostgresUserRepository) Search(ctx context.Context, params UserSearchParams) ([]*models.User, int64, error) {
	offset, limit := helpers.CalculateOffsetLimit(params.Page, params.PageSize)

	order := "created_at DESC"
	if strings.EqualFold(params.SortOrder, "asc") {
		order = "created_at ASC"
	}

	base := squirrel.Select(userColumns).
		From("users").
		Where(squirrel.NotEq{"external_id": params.ExcludeExternalID}).
		PlaceholderFormat(squirrel.Dollar)
	countBase := squirrel.Select("COUNT(*)").
		From("users").
		Where(squirrel.NotEq{"external_id": params.ExcludeExternalID}).
		PlaceholderFormat(squirrel.Dollar)

	if strings.TrimSpace(params.Search) != "" {
		pattern := "%" + params.Search + "%"
		match := squirrel.Or{
			squirrel.ILike{"username": pattern},
			squirrel.ILike{"name": pattern},
		}
		base = base.Where(match)
		countBase = countBase.Where(match)
	}

	sqlStr, args, err := base.OrderBy(order).Limit(uint64(limit)).Offset(offset).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build user search query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, storeErr(err, "failed to search users")
	}
	users, err := scanUserRows(rows)
	if err != nil {
		return nil, 0, storeErr(err, "failed to search users")
	}

	countSQL, countArgs, err := countBase.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build user count query: %w", err)
	}
	var total int64
	if err := r.db.Pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, storeErr(err, "failed to count users")
	}

	return users, total, nil
}

// ListActivity returns replies that other users left on the given user's
// memories, authors populated. The user's own replies are excluded. The
// reply ids come from the authoritative child lists of the user's memories.
func (r *PostgresUserRepository) ListActivity(ctx context.Context, userID int64) ([]*models.Memory, error) {
	rows, err := r.db.Pool.Query(ctx, "SELECT children FROM memories WHERE author_id = $1", userID)
	if err != nil {
		return nil, storeErr(err, "failed to fetch user memories")
	}

	var childIDs []int64
	for rows.Next() {
		var children []int64
		if err := rows.Scan(&children); err != nil {
			rows.Close()
			return nil, storeErr(err, "failed to fetch user memories")
		}
		childIDs = append(childIDs, children...)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "failed to fetch user memories")
	}

	if len(childIDs) == 0 {
		return nil, nil
	}

	replyRows, err := r.db.Pool.Query(ctx,
		"SELECT "+memoryColumns+" FROM memories WHERE id = ANY($1) AND author_id <> $2 ORDER BY created_at DESC",
		childIDs, userID)
	if err != nil {
		return nil, storeErr(err, "failed to fetch activity")
	}
	replies, err := scanMemoryRows(replyRows)
	if err != nil {
		return nil, storeErr(err, "failed to fetch activity")
	}

	if err := loadMemoryAuthors(ctx, r.db.Pool, replies); err != nil {
		return nil, storeErr(err, "failed to load authors")
	}
	return replies, nil
}

// ListPosts returns the user's memories in reverse-index order with
// community and one level of replies populated.
func (r *PostgresUserRepository) ListPosts(ctx context.Context, userID int64) ([]*models.Memory, error) {
	var memoryIDs []int64
	err := r.db.Pool.QueryRow(ctx, "SELECT memory_ids FROM users WHERE id = $1", userID).Scan(&memoryIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, storeErr(err, "failed to fetch user")
	}

	memories, err := fetchMemoriesByIDs(ctx, r.db.Pool, memoryIDs)
	if err != nil {
		return nil, storeErr(err, "failed to fetch user memories")
	}

	// Populate the community on each post
	seen := make(map[int64]struct{})
	var communityIDs []int64
	for _, m := range memories {
		if m.CommunityID == nil {
			continue
		}
		if _, ok := seen[*m.CommunityID]; !ok {
			seen[*m.CommunityID] = struct{}{}
			communityIDs = append(communityIDs, *m.CommunityID)
		}
	}
	if len(communityIDs) > 0 {
		commRows, err := r.db.Pool.Query(ctx,
			"SELECT "+communityColumns+" FROM communities WHERE id = ANY($1)", communityIDs)
		if err != nil {
			return nil, storeErr(err, "failed to fetch communities")
		}
		communities, err := scanCommunityRows(commRows)
		if err != nil {
			return nil, storeErr(err, "failed to fetch communities")
		}
		byID := make(map[int64]*models.Community, len(communities))
		for _, c := range communities {
			byID[c.ID] = c
		}
		for _, m := range memories {
			if m.CommunityID != nil {
				m.Community = byID[*m.CommunityID]
			}
		}
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

// appendMemoryRef adds a memory id to the user's reverse index unless it is
// already present. Runs against a pool or an enclosing transaction.
func (r *PostgresUserRepository) appendMemoryRef(ctx context.Context, q Querier, userID, memoryID int64) error {
	_, err := q.Exec(ctx, `
		UPDATE users SET memory_ids = array_append(memory_ids, $2), updated_at = NOW()
		WHERE id = $1 AND NOT (memory_ids @> ARRAY[$2]::BIGINT[])`,
		userID, memoryID)
	if err != nil {
		return fmt.Errorf("failed to append memory reference: %w", err)
	}
	return nil
}

// AppendMemoryRef adds a memory id to the user's reverse index. Adding an id
// that is already present is a no-op.
func (r *PostgresUserRepository) AppendMemoryRef(ctx context.Context, userID, memoryID int64) error {
	return r.appendMemoryRef(ctx, r.db.Pool, userID, memoryID)
}

// RemoveMemoryRefs removes memory ids from the user's reverse index.
// Removing ids that are absent is a no-op.
func (r *PostgresUserRepository) RemoveMemoryRefs(ctx context.Context, userID int64, memoryIDs []int64) error {
	if len(memoryIDs) == 0 {
		return nil
	}
	_, err := r.db.Pool.Exec(ctx, pruneUserMemoryRefsSQL, []int64{userID}, memoryIDs)
	if err != nil {
		return storeErr(err, "failed to remove memory references")
	}
	return nil
}

// addCommunityRef adds a community membership reference unless present.
func (r *PostgresUserRepository) addCommunityRef(ctx context.Context, q Querier, userID, communityID int64) error {
	_, err := q.Exec(ctx, `
		UPDATE users SET community_ids = array_append(community_ids, $2), updated_at = NOW()
		WHERE id = $1 AND NOT (community_ids @> ARRAY[$2]::BIGINT[])`,
		userID, communityID)
	if err != nil {
		return fmt.Errorf("failed to append community reference: %w", err)
	}
	return nil
}

// AddCommunityRef adds a community membership reference to the user.
func (r *PostgresUserRepository) AddCommunityRef(ctx context.Context, userID, communityID int64) error {
	return r.addCommunityRef(ctx, r.db.Pool, userID, communityID)
}

// removeCommunityRef drops a community membership reference.
func (r *PostgresUserRepository) removeCommunityRef(ctx context.Context, q Querier, userID, communityID int64) error {
	_, err := q.Exec(ctx, `
		UPDATE users SET community_ids = (
			SELECT COALESCE(array_agg(x ORDER BY ord), '{}')
			FROM unnest(community_ids) WITH ORDINALITY AS t(x, ord)
			WHERE x <> $2
		), updated_at = NOW()
		WHERE id = $1`,
		userID, communityID)
	if err != nil {
		return fmt.Errorf("failed to remove community reference: %w", err)
	}
	return nil
}

// RemoveCommunityRef drops a community membership reference from the user.
func (r *PostgresUserRepository) RemoveCommunityRef(ctx context.Context, userID, communityID int64) error {
	return r.removeCommunityRef(ctx, r.db.Pool, userID, communityID)
}
