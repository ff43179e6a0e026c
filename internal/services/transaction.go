package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/models"
)

var (
	// ErrTransactionNotFound is returned when the record does not exist for the user.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrCategoryNotFound is returned when a referenced category does not exist.
	ErrCategoryNotFound = errors.New("category not found")
)

// TransactionCRUDReader defines read operations for direct server-side CRUD.
type TransactionCRUDReader interface {
	GetByID(ctx context.Context, ownerID uuid.UUID, id string) (*models.TransactionDB, error)
}

// TransactionCRUDWriter defines write operations for direct server-side CRUD.
// Save stamps updated_at with the server clock, unlike the merge writer.
type TransactionCRUDWriter interface {
	Save(ctx context.Context, rec models.TransactionDB) error
	Delete(ctx context.Context, ownerID uuid.UUID, id string) error
}

// TransactionService handles direct server-side CRUD. Every edit bumps
// updated_at server-side, so other devices pick the change up on their
// next pull.
type TransactionService struct {
	feed       TransactionFeedReader
	reader     TransactionCRUDReader
	writer     TransactionCRUDWriter
	categories CategoryReader
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(
	feed TransactionFeedReader,
	reader TransactionCRUDReader,
	writer TransactionCRUDWriter,
	categories CategoryReader,
) *TransactionService {
	return &TransactionService{
		feed:       feed,
		reader:     reader,
		writer:     writer,
		categories: categories,
	}
}

// List returns the user's full transaction history, ascending by updated_at.
func (svc *TransactionService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Transaction, error) {
	rows, err := svc.feed.ListChangedSince(ctx, ownerID, nil)
	if err != nil {
		logger.Log.Errorw("failed to list transactions", "ownerID", ownerID, "err", err)
		return nil, err
	}

	out := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Wire())
	}
	return out, nil
}

// Create stores a new transaction. A missing id gets a server-generated
// UUID; ids supplied by the caller are kept as-is so API clients can use
// the same stable ids sync clients do.
func (svc *TransactionService) Create(ctx context.Context, ownerID uuid.UUID, tx models.Transaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := validateFields(tx); err != nil {
		return "", err
	}

	category, err := svc.categories.GetByID(ctx, tx.CategoryID)
	if err != nil {
		logger.Log.Errorw("failed to look up category", "categoryID", tx.CategoryID, "err", err)
		return "", err
	}
	if category == nil {
		return "", ErrCategoryNotFound
	}

	rec := models.TransactionDB{
		ID:          tx.ID,
		OwnerID:     ownerID,
		Amount:      tx.Amount,
		Description: tx.Description,
		Type:        tx.Type,
		CategoryID:  tx.CategoryID,
		Date:        tx.Date,
	}
	if err := svc.writer.Save(ctx, rec); err != nil {
		logger.Log.Errorw("failed to save transaction", "id", tx.ID, "err", err)
		return "", err
	}

	return tx.ID, nil
}

// Update overwrites an existing transaction with server-stamped updated_at.
func (svc *TransactionService) Update(ctx context.Context, ownerID uuid.UUID, id string, tx models.Transaction) error {
	tx.ID = id
	if err := validateFields(tx); err != nil {
		return err
	}

	existing, err := svc.reader.GetByID(ctx, ownerID, id)
	if err != nil {
		logger.Log.Errorw("failed to look up transaction", "id", id, "err", err)
		return err
	}
	if existing == nil {
		return ErrTransactionNotFound
	}

	rec := models.TransactionDB{
		ID:          id,
		OwnerID:     ownerID,
		Amount:      tx.Amount,
		Description: tx.Description,
		Type:        tx.Type,
		CategoryID:  tx.CategoryID,
		Date:        tx.Date,
	}
	if err := svc.writer.Save(ctx, rec); err != nil {
		logger.Log.Errorw("failed to update transaction", "id", id, "err", err)
		return err
	}

	return nil
}

// Delete removes a transaction owned by the user.
func (svc *TransactionService) Delete(ctx context.Context, ownerID uuid.UUID, id string) error {
	err := svc.writer.Delete(ctx, ownerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTransactionNotFound
	}
	if err != nil {
		logger.Log.Errorw("failed to delete transaction", "id", id, "err", err)
	}
	return err
}

// validateFields checks the CRUD field set; updated_at is server-stamped
// on this path and therefore not required.
func validateFields(tx models.Transaction) error {
	if tx.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if tx.Description == "" {
		return errors.New("description is required")
	}
	if tx.Type != models.TypeIncome && tx.Type != models.TypeExpense {
		return fmt.Errorf("type must be %q or %q", models.TypeIncome, models.TypeExpense)
	}
	if tx.CategoryID == "" {
		return errors.New("categoryId is required")
	}
	if tx.Date.IsZero() {
		return errors.New("date is required")
	}
	return nil
}
