package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/models"
)

// CategoryReadRepository handles category read operations
type CategoryReadRepository struct {
	db *sqlx.DB
}

func NewCategoryReadRepository(db *sqlx.DB) *CategoryReadRepository {
	return &CategoryReadRepository{db: db}
}

// GetByID returns a category by id, or nil when it does not exist.
func (r *CategoryReadRepository) GetByID(ctx context.Context, id string) (*models.CategoryDB, error) {
	const query = `
		SELECT id, owner_id, name, color, created_at, updated_at
		FROM categories
		WHERE id = $1
	`

	var row models.CategoryDB
	err := r.db.GetContext(ctx, &row, query, id)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{id},
		"result", row,
		"error", err,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &row, nil
}

// ListByOwner returns all categories belonging to the user, ordered by name.
func (r *CategoryReadRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.CategoryDB, error) {
	const query = `
		SELECT id, owner_id, name, color, created_at, updated_at
		FROM categories
		WHERE owner_id = $1
		ORDER BY name ASC
	`

	var rows []models.CategoryDB
	err := r.db.SelectContext(ctx, &rows, query, ownerID)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{ownerID},
		"result", len(rows),
		"error", err,
	)

	if err != nil {
		return nil, err
	}

	return rows, nil
}

// CategoryWriteRepository handles category write operations
type CategoryWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewCategoryWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *CategoryWriteRepository {
	return &CategoryWriteRepository{db: db, txGetter: txGetter}
}

// Save performs an UPSERT: creates the category if absent, otherwise updates
// its color keeping the (owner_id, name) unique pair.
func (r *CategoryWriteRepository) Save(ctx context.Context, rec models.CategoryDB) error {
	query := `
		INSERT INTO categories (id, owner_id, name, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (owner_id, name) DO UPDATE
		SET color = EXCLUDED.color,
		    updated_at = NOW()
	`
	args := []any{rec.ID, rec.OwnerID, rec.Name, rec.Color}

	var executor sqlx.ExtContext = r.db
	if r.txGetter != nil {
		if tx := r.txGetter(ctx); tx != nil {
			executor = tx
		}
	}

	res, err := executor.ExecContext(ctx, query, args...)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", args,
		"result", rowsAffected,
		"error", err,
	)

	return err
}
