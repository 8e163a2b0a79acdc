package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Ex1s9/microservices/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// GameRepository handles persistence for catalog listings.
type GameRepository struct {
	db *sql.DB
}

func NewGameRepository(db *sql.DB) *GameRepository {
	return &GameRepository{db: db}
}

const gameColumns = `id, name, description, developer_id, publisher_id, cover_image, trailer_url,
		release_date, price, status, categories, tags, platforms, screenshots,
		rating_count, average_rating, purchase_count, created_at, updated_at, deleted_at`

func scanGame(row interface{ Scan(...any) error }) (types.Game, error) {
	var game types.Game
	var publisherID uuid.NullUUID
	var trailerURL sql.NullString
	var deletedAt sql.NullTime
	err := row.Scan(
		&game.ID,
		&game.Name,
		&game.Description,
		&game.DeveloperID,
		&publisherID,
		&game.CoverImage,
		&trailerURL,
		&game.ReleaseDate,
		&game.Price,
		&game.Status,
		pq.Array(&game.Categories),
		pq.Array(&game.Tags),
		pq.Array(&game.Platforms),
		pq.Array(&game.Screenshots),
		&game.RatingCount,
		&game.AverageRating,
		&game.PurchaseCount,
		&game.CreatedAt,
		&game.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return types.Game{}, err
	}

	if publisherID.Valid {
		id := publisherID.UUID
		game.PublisherID = &id
	}
	if trailerURL.Valid {
		url := trailerURL.String
		game.TrailerURL = &url
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		game.DeletedAt = &t
	}
	return game, nil
}

// Create persists a new listing. The row and its taxonomy arrays are written
// in a single statement, so the write is all-or-nothing.
func (r *GameRepository) Create(ctx context.Context, game types.Game) (types.Game, error) {
	now := time.Now()
	game.CreatedAt = now
	game.UpdatedAt = now

	var publisherID uuid.NullUUID
	if game.PublisherID != nil {
		publisherID = uuid.NullUUID{UUID: *game.PublisherID, Valid: true}
	}
	var trailerURL sql.NullString
	if game.TrailerURL != nil {
		trailerURL = sql.NullString{String: *game.TrailerURL, Valid: true}
	}

	const query = `
		INSERT INTO games (id, name, description, developer_id, publisher_id, cover_image, trailer_url,
			release_date, price, status, categories, tags, platforms, screenshots, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		game.ID,
		game.Name,
		game.Description,
		game.DeveloperID,
		publisherID,
		game.CoverImage,
		trailerURL,
		game.ReleaseDate,
		game.Price,
		string(game.Status),
		pq.Array(game.Categories),
		pq.Array(game.Tags),
		pq.Array(game.Platforms),
		pq.Array(game.Screenshots),
		now,
	)
	if err != nil {
		return types.Game{}, mapPQError(err)
	}
	return game, nil
}

// Get fetches a listing. Soft-deleted rows are invisible unless
// includeDeleted is set.
func (r *GameRepository) Get(ctx context.Context, id uuid.UUID, includeDeleted bool) (types.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	game, err := scanGame(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Game{}, ErrNotFound
		}
		return types.Game{}, err
	}
	return game, nil
}

// Update applies a partial update. Absent fields keep their stored values;
// a supplied taxonomy array replaces the stored array wholesale in the same
// statement, so replacement is never partial.
func (r *GameRepository) Update(ctx context.Context, id uuid.UUID, upd types.GameUpdate) (types.Game, error) {
	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}

	const query = `
		UPDATE games
		SET name = COALESCE($2, name),
			description = COALESCE($3, description),
			cover_image = COALESCE($4, cover_image),
			trailer_url = COALESCE($5, trailer_url),
			release_date = COALESCE($6, release_date),
			price = COALESCE($7, price),
			status = COALESCE($8::game_status, status),
			categories = COALESCE($9, categories),
			tags = COALESCE($10, tags),
			platforms = COALESCE($11, platforms),
			screenshots = COALESCE($12, screenshots),
			updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + gameColumns

	var game types.Game
	err := withRetry(ctx, func(ctx context.Context) error {
		var scanErr error
		game, scanErr = scanGame(r.db.QueryRowContext(
			ctx,
			query,
			id,
			upd.Name,
			upd.Description,
			upd.CoverImage,
			upd.TrailerURL,
			upd.ReleaseDate,
			upd.Price,
			status,
			pq.Array(upd.Categories),
			pq.Array(upd.Tags),
			pq.Array(upd.Platforms),
			pq.Array(upd.Screenshots),
		))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Game{}, ErrNotFound
		}
		return types.Game{}, mapPQError(err)
	}
	return game, nil
}

// SoftDelete marks a listing deleted without removing the row. Only the
// owning developer may delete; a mismatched requester gets
// ErrPermissionDenied, a missing or already-deleted id gets ErrNotFound.
func (r *GameRepository) SoftDelete(ctx context.Context, id, requester uuid.UUID) error {
	const query = `
		UPDATE games
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND developer_id = $2 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, requester)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	const ownerQuery = `SELECT developer_id FROM games WHERE id = $1 AND deleted_at IS NULL`
	var owner uuid.UUID
	if err := r.db.QueryRowContext(ctx, ownerQuery, id).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return ErrPermissionDenied
}

// List returns a filtered page of listings plus the total match count.
// Soft-deleted rows are excluded unless the filter's IncludeDeleted is set.
func (r *GameRepository) List(ctx context.Context, filter types.GameFilter, offset, limit int) ([]types.Game, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where, args := buildGameFilter(filter)

	countQuery := `SELECT COUNT(1) FROM games` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT ` + gameColumns + ` FROM games` + where +
		orderClause(filter, len(args)) +
		fmt.Sprintf(` OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, offset, limit)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	games := make([]types.Game, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, 0, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return games, total, nil
}

func buildGameFilter(filter types.GameFilter) (string, []any) {
	conditions := make([]string, 0, 8)
	args := make([]any, 0, 8)

	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d::game_status", len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		conditions = append(conditions, fmt.Sprintf("price >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		conditions = append(conditions, fmt.Sprintf("price <= $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("categories @> ARRAY[$%d]::text[]", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		conditions = append(conditions, fmt.Sprintf("tags @> ARRAY[$%d]::text[]", len(args)))
	}
	if filter.Platform != "" {
		args = append(args, filter.Platform)
		conditions = append(conditions, fmt.Sprintf("platforms @> ARRAY[$%d]::text[]", len(args)))
	}
	if filter.Query != "" {
		args = append(args, filter.Query)
		conditions = append(conditions, fmt.Sprintf("search_vector @@ websearch_to_tsquery('english', $%d)", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	where := " WHERE " + conditions[0]
	for _, cond := range conditions[1:] {
		where += " AND " + cond
	}
	return where, args
}

func orderClause(filter types.GameFilter, argCount int) string {
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}

	switch filter.Sort {
	case types.SortPrice:
		return " ORDER BY price " + direction + ", id"
	case types.SortRating:
		return " ORDER BY average_rating " + direction + ", id"
	case types.SortRelevance:
		if filter.Query != "" {
			// The query text is always the last filter argument when present.
			return fmt.Sprintf(" ORDER BY ts_rank(search_vector, websearch_to_tsquery('english', $%d)) DESC, id", argCount)
		}
		return " ORDER BY created_at DESC, id"
	case types.SortCreatedAt:
		return " ORDER BY created_at " + direction + ", id"
	default:
		return " ORDER BY created_at DESC, id"
	}
}

// ApplyRating folds one rating into the aggregate counters in a single
// atomic statement. Concurrent raters never lose updates because the old
// column values are read and written inside the same UPDATE.
func (r *GameRepository) ApplyRating(ctx context.Context, id uuid.UUID, rating float64) error {
	const query = `
		UPDATE games
		SET average_rating = round(((average_rating * rating_count) + $2) / (rating_count + 1), 2),
			rating_count = rating_count + 1,
			updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`
	return withRetry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, id, rating)
		if err != nil {
			return mapPQError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RecordPurchase increments the purchase counter atomically.
func (r *GameRepository) RecordPurchase(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE games
		SET purchase_count = purchase_count + 1,
			updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`
	return withRetry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
