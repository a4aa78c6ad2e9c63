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

const communityColumns = "id, external_id, name, image, created_by, member_ids, memory_ids, created_at"

// PostgresCommunityRepository handles database operations for communities.
type PostgresCommunityRepository struct {
	db    *db.PostgresDB
	users *PostgresUserRepository
}

// NewPostgresCommunityRepository creates a new PostgresCommunityRepository.
func NewPostgresCommunityRepository(database *db.PostgresDB, users *PostgresUserRepository) *PostgresCommunityRepository {
	return &PostgresCommunityRepository{db: database, users: users}
}

func scanCommunity(row pgx.Row) (*models.Community, error) {
	var c models.Community
	err := row.Scan(&c.ID, &c.ExternalID, &c.Name, &c.Image, &c.CreatedBy,
		&c.MemberIDs, &c.MemoryIDs, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCommunityRows(rows pgx.Rows) ([]*models.Community, error) {
	defer rows.Close()

	var communities []*models.Community
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return nil, err
		}
		communities = append(communities, c)
	}
	return communities, rows.Err()
}

// ResolveExternalID maps a community's external id to its internal id.
func (r *PostgresCommunityRepository) ResolveExternalID(ctx context.Context, externalID string) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx, "SELECT id FROM communities WHERE external_id = $1", externalID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrCommunityNotFound
		}
		return 0, storeErr(err, "failed to resolve community")
	}
	return id, nil
}

// FindByID retrieves a community by internal id.
func (r *PostgresCommunityRepository) FindByID(ctx context.Context, id int64) (*models.Community, error) {
	row := r.db.Pool.QueryRow(ctx, "SELECT "+communityColumns+" FROM communities WHERE id = $1", id)
	community, err := scanCommunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCommunityNotFound
		}
		return nil, storeErr(err, "failed to fetch community")
	}
	return community, nil
}

// FindByExternalID retrieves a community with its members populated.
func (r *PostgresCommunityRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Community, error) {
	row := r.db.Pool.QueryRow(ctx, "SELECT "+communityColumns+" FROM communities WHERE external_id = $1", externalID)
	community, err := scanCommunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCommunityNotFound
		}
		return nil, storeErr(err, "failed to fetch community")
	}

	if len(community.MemberIDs) > 0 {
		rows, err := r.db.Pool.Query(ctx,
			"SELECT "+userColumns+" FROM users WHERE id = ANY($1)", community.MemberIDs)
		if err != nil {
			return nil, storeErr(err, "failed to fetch community members")
		}
		members, err := scanUserRows(rows)
		if err != nil {
			return nil, storeErr(err, "failed to fetch community members")
		}
		community.Members = members
	}

	return community, nil
}

// Create inserts a new community. The creator, when set, becomes its first
// member and gains a membership reference in the same transaction.
func (r *PostgresCommunityRepository) Create(ctx context.Context, community *models.Community) (*models.Community, error) {
	var created *models.Community

	err := r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		memberIDs := []int64{}
		if community.CreatedBy != nil {
			memberIDs = append(memberIDs, *community.CreatedBy)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO communities (external_id, name, image, created_by, member_ids)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+communityColumns,
			community.ExternalID, community.Name, community.Image, community.CreatedBy, memberIDs)

		c, err := scanCommunity(row)
		if err != nil {
			return err
		}

		if community.CreatedBy != nil {
			if err := r.users.addCommunityRef(ctx, tx, *community.CreatedBy, c.ID); err != nil {
				return err
			}
		}

		created = c
		return nil
	})
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "communities_name_key") {
			return nil, apperrors.ErrCommunityAlreadyExists
		}
		return nil, storeErr(err, "failed to create community")
	}

	return created, nil
}

// List retrieves a page of communities filtered by an optional
// case-insensitive name search.
func (r *PostgresCommunityRepository) List(ctx context.Context, search string, page, pageSize int) ([]*models.Community, int64, error) {
	offset, limit := helpers.CalculateOffsetLimit(page, pageSize)

	base := squirrel.Select(communityColumns).From("communities").PlaceholderFormat(squirrel.Dollar)
	countBase := squirrel.Select("COUNT(*)").From("communities").PlaceholderFormat(squirrel.Dollar)

	if strings.TrimSpace(search) != "" {
		match := squirrel.ILike{"name": "%" + search + "%"}
		base = base.Where(match)
		countBase = countBase.Where(match)
	}

	sqlStr, args, err := base.OrderBy("created_at DESC").Limit(uint64(limit)).Offset(offset).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build community list query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, storeErr(err, "failed to list communities")
	}
	communities, err := scanCommunityRows(rows)
	if err != nil {
		return nil, 0, storeErr(err, "failed to list communities")
	}

	countSQL, countArgs, err := countBase.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build community count query: %w", err)
	}
	var total int64
	if err := r.db.Pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, storeErr(err, "failed to count communities")
	}

	return communities, total, nil
}

// AddMember adds a user to the community, updating both the community's
// member list and the user's membership list in one transaction.
func (r *PostgresCommunityRepository) AddMember(ctx context.Context, communityID, userID int64) error {
	community, err := r.FindByID(ctx, communityID)
	if err != nil {
		return err
	}
	if helpers.Int64SliceContains(community.MemberIDs, userID) {
		return apperrors.ErrAlreadyMember
	}

	err = r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE communities SET member_ids = array_append(member_ids, $2)
			WHERE id = $1 AND NOT (member_ids @> ARRAY[$2]::BIGINT[])`,
			communityID, userID)
		if err != nil {
			return err
		}
		return r.users.addCommunityRef(ctx, tx, userID, communityID)
	})
	if err != nil {
		return storeErr(err, "failed to add member to community")
	}
	return nil
}

// RemoveMember removes a user from the community and drops the membership
// reference on the user side in one transaction.
func (r *PostgresCommunityRepository) RemoveMember(ctx context.Context, communityID, userID int64) error {
	community, err := r.FindByID(ctx, communityID)
	if err != nil {
		return err
	}
	if !helpers.Int64SliceContains(community.MemberIDs, userID) {
		return apperrors.ErrNotMember
	}

	err = r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE communities SET member_ids = (
				SELECT COALESCE(array_agg(x ORDER BY ord), '{}')
				FROM unnest(member_ids) WITH ORDINALITY AS t(x, ord)
				WHERE x <> $2
			)
			WHERE id = $1`,
			communityID, userID)
		if err != nil {
			return err
		}
		return r.users.removeCommunityRef(ctx, tx, userID, communityID)
	})
	if err != nil {
		return storeErr(err, "failed to remove member from community")
	}
	return nil
}

// appendMemoryRef adds a memory id to the community's reverse index unless
// it is already present. Runs against a pool or an enclosing transaction.
func (r *PostgresCommunityRepository) appendMemoryRef(ctx context.Context, q Querier, communityID, memoryID int64) error {
	_, err := q.Exec(ctx, `
		UPDATE communities SET memory_ids = array_append(memory_ids, $2)
		WHERE id = $1 AND NOT (memory_ids @> ARRAY[$2]::BIGINT[])`,
		communityID, memoryID)
	if err != nil {
		return fmt.Errorf("failed to append memory reference: %w", err)
	}
	return nil
}

// AppendMemoryRef adds a memory id to the community's reverse index. Adding
// an id that is already present is a no-op.
func (r *PostgresCommunityRepository) AppendMemoryRef(ctx context.Context, communityID, memoryID int64) error {
	return r.appendMemoryRef(ctx, r.db.Pool, communityID, memoryID)
}

// RemoveMemoryRefs removes memory ids from the community's reverse index.
// Removing ids that are absent is a no-op.
func (r *PostgresCommunityRepository) RemoveMemoryRefs(ctx context.Context, communityID int64, memoryIDs []int64) error {
	if len(memoryIDs) == 0 {
		return nil
	}
	_, err := r.db.Pool.Exec(ctx, pruneCommunityMemoryRefsSQL, []int64{communityID}, memoryIDs)
	if err != nil {
		return storeErr(err, "failed to remove memory references")
	}
	return nil
}
