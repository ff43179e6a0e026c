package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/models"
)

// TransactionReadRepository handles transaction read operations
type TransactionReadRepository struct {
	db *sqlx.DB
}

func NewTransactionReadRepository(db *sqlx.DB) *TransactionReadRepository {
	return &TransactionReadRepository{db: db}
}

// ListChangedSince returns the user's transactions with updated_at strictly
// greater than since, ascending by updated_at. A nil since returns the full
// history. Ascending order keeps cursor advancement safe when a client
// applies the window only partially before crashing.
func (r *TransactionReadRepository) ListChangedSince(ctx context.Context, ownerID uuid.UUID, since *time.Time) ([]models.TransactionDB, error) {
	const query = `
		SELECT id, owner_id, amount, description, type, category_id, date, updated_at, created_at
		FROM transactions
		WHERE owner_id = $1
		  AND ($2::TIMESTAMPTZ IS NULL OR updated_at > $2)
		ORDER BY updated_at ASC
	`

	var rows []models.TransactionDB
	err := r.db.SelectContext(ctx, &rows, query, ownerID, since)

	// Log with query in single line
	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{ownerID, since},
		"result", len(rows),
		"error", err,
	)

	if err != nil {
		return nil, err
	}

	return rows, nil
}

// GetUpdatedAt returns the stored conflict timestamp for a record, or nil
// when the record does not exist for this owner.
func (r *TransactionReadRepository) GetUpdatedAt(ctx context.Context, ownerID uuid.UUID, id string) (*time.Time, error) {
	const query = `
		SELECT updated_at
		FROM transactions
		WHERE id = $1 AND owner_id = $2
	`

	var updatedAt time.Time
	err := r.db.GetContext(ctx, &updatedAt, query, id, ownerID)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{id, ownerID},
		"result", updatedAt,
		"error", err,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &updatedAt, nil
}

// GetByID returns a single transaction owned by the user.
func (r *TransactionReadRepository) GetByID(ctx context.Context, ownerID uuid.UUID, id string) (*models.TransactionDB, error) {
	const query = `
		SELECT id, owner_id, amount, description, type, category_id, date, updated_at, created_at
		FROM transactions
		WHERE id = $1 AND owner_id = $2
	`

	var row models.TransactionDB
	err := r.db.GetContext(ctx, &row, query, id, ownerID)

	logger.Log.Infow(
		"query", strings.Join(strings.Fields(query), " "),
		"args", []any{id, ownerID},
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

// TransactionWriteRepository handles transaction write operations
type TransactionWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

func NewTransactionWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *TransactionWriteRepository {
	return &TransactionWriteRepository{db: db, txGetter: txGetter}
}

func (r *TransactionWriteRepository) executor(ctx context.Context) sqlx.ExtContext {
	var executor sqlx.ExtContext = r.db
	if r.txGetter != nil {
		if tx := r.txGetter(ctx); tx != nil {
			executor = tx
		}
	}
	return executor
}

// InsertFromClient inserts a client-originated record, preserving the
// client's updated_at so causal order survives for other devices' pulls.
func (r *TransactionWriteRepository) InsertFromClient(ctx context.Context, ownerID uuid.UUID, tx models.Transaction) error {
	query := `
		INSERT INTO transactions (id, owner_id, amount, description, type, category_id, date, updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	args := []any{tx.ID, ownerID, tx.Amount, tx.Description, tx.Type, tx.CategoryID, tx.Date, tx.UpdatedAt}

	res, err := r.executor(ctx).ExecContext(ctx, query, args...)
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

// UpdateFromClient overwrites the mutable fields of an existing record with
// the incoming client values, including the client's updated_at.
func (r *TransactionWriteRepository) UpdateFromClient(ctx context.Context, ownerID uuid.UUID, tx models.Transaction) error {
	query := `
		UPDATE transactions
		SET amount = $3, description = $4, type = $5, category_id = $6, date = $7, updated_at = $8
		WHERE id = $1 AND owner_id = $2
	`
	args := []any{tx.ID, ownerID, tx.Amount, tx.Description, tx.Type, tx.CategoryID, tx.Date, tx.UpdatedAt}

	res, err := r.executor(ctx).ExecContext(ctx, query, args...)
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

// Save performs a server-stamped upsert for direct server-side CRUD.
// Server edits always bump updated_at with the server clock.
func (r *TransactionWriteRepository) Save(ctx context.Context, rec models.TransactionDB) error {
	query := `
		INSERT INTO transactions (id, owner_id, amount, description, type, category_id, date, updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET amount = EXCLUDED.amount,
		    description = EXCLUDED.description,
		    type = EXCLUDED.type,
		    category_id = EXCLUDED.category_id,
		    date = EXCLUDED.date,
		    updated_at = NOW()
		WHERE transactions.owner_id = EXCLUDED.owner_id
	`
	args := []any{rec.ID, rec.OwnerID, rec.Amount, rec.Description, rec.Type, rec.CategoryID, rec.Date}

	res, err := r.executor(ctx).ExecContext(ctx, query, args...)
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

// Delete removes a transaction owned by the user. Returns sql.ErrNoRows
// when nothing was deleted.
func (r *TransactionWriteRepository) Delete(ctx context.Context, ownerID uuid.UUID, id string) error {
	query := `
		DELETE FROM transactions
		WHERE id = $1 AND owner_id = $2
	`
	args := []any{id, ownerID}

	res, err := r.executor(ctx).ExecContext(ctx, query, args...)
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

	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
