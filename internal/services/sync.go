package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/models"
	"github.com/segmentio/kafka-go"
)

// TransactionFeedReader lists changed-since windows for pull responses.
type TransactionFeedReader interface {
	ListChangedSince(ctx context.Context, ownerID uuid.UUID, since *time.Time) ([]models.TransactionDB, error) // Transactions changed after since, ascending by updated_at
}

// TransactionMergeReader exposes the stored conflict timestamp per record.
type TransactionMergeReader interface {
	GetUpdatedAt(ctx context.Context, ownerID uuid.UUID, id string) (*time.Time, error) // Stored updated_at, nil when the record is unknown
}

// TransactionMergeWriter applies accepted client records.
type TransactionMergeWriter interface {
	InsertFromClient(ctx context.Context, ownerID uuid.UUID, tx models.Transaction) error // Creates a record preserving the client's updated_at
	UpdateFromClient(ctx context.Context, ownerID uuid.UUID, tx models.Transaction) error // Overwrites mutable fields preserving the client's updated_at
}

// CategoryReader retrieves categories for embedding into pull responses.
type CategoryReader interface {
	GetByID(ctx context.Context, id string) (*models.CategoryDB, error)
}

// CategoryCache caches wire categories.
type CategoryCache interface {
	GetByID(ctx context.Context, id string) (*models.Category, error)
	Set(ctx context.Context, category models.Category) error
}

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error // Writes messages to Kafka
	Close() error                                                   // Closes the Kafka writer
}

// PullResult is the outcome of one pull window.
type PullResult struct {
	Transactions []models.Transaction
	ServerTime   time.Time
}

// PushResult aggregates per-record merge outcomes for one batch.
type PushResult struct {
	Created    int
	Updated    int
	Conflicts  int
	Errors     []models.PushRecordError
	ServerTime time.Time
}

// SyncEvent is published to Kafka for every record the resolver accepts.
type SyncEvent struct {
	EventID       string    `json:"event_id"`
	Action        string    `json:"action"` // "created" or "updated"
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Type          string    `json:"type"`
	UpdatedAt     time.Time `json:"updated_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// SyncService implements the server half of the synchronization engine:
// the changed-since pull window and the per-record push/merge resolver.
type SyncService struct {
	feed        TransactionFeedReader
	mergeReader TransactionMergeReader
	writer      TransactionMergeWriter
	categories  CategoryReader
	cache       CategoryCache
	kafkaWriter KafkaWriter
}

// NewSyncService creates a new SyncService.
func NewSyncService(
	feed TransactionFeedReader,
	mergeReader TransactionMergeReader,
	writer TransactionMergeWriter,
	categories CategoryReader,
	cache CategoryCache,
	kafkaWriter KafkaWriter,
) *SyncService {
	return &SyncService{
		feed:        feed,
		mergeReader: mergeReader,
		writer:      writer,
		categories:  categories,
		cache:       cache,
		kafkaWriter: kafkaWriter,
	}
}

// Pull returns every transaction of the user with updated_at strictly after
// since, ascending, plus a server-generated timestamp the client must adopt
// as its new cursor. A nil since returns the full history.
func (s *SyncService) Pull(ctx context.Context, userID uuid.UUID, since *time.Time) (*PullResult, error) {
	rows, err := s.feed.ListChangedSince(ctx, userID, since)
	if err != nil {
		logger.Log.Errorw("failed to list changed transactions", "userID", userID, "since", since, "error", err)
		return nil, err
	}

	transactions := make([]models.Transaction, 0, len(rows))
	resolved := make(map[string]*models.Category)
	for _, row := range rows {
		tx := row.Wire()
		category, ok := resolved[row.CategoryID]
		if !ok {
			category = s.resolveCategory(ctx, row.CategoryID)
			resolved[row.CategoryID] = category
		}
		tx.Category = category
		transactions = append(transactions, tx)
	}

	return &PullResult{
		Transactions: transactions,
		ServerTime:   time.Now().UTC(),
	}, nil
}

// Push resolves a batch of client-originated records against server state.
// Records are processed independently: a malformed or conflicting record
// never aborts the rest of the batch, and arrival order does not affect the
// outcome, only timestamp order does.
func (s *SyncService) Push(ctx context.Context, userID uuid.UUID, batch []models.Transaction) (*PushResult, error) {
	res := &PushResult{Errors: []models.PushRecordError{}}

	for _, tx := range batch {
		if err := validateRecord(tx); err != nil {
			res.Errors = append(res.Errors, models.PushRecordError{ID: tx.ID, Error: err.Error()})
			continue
		}

		stored, err := s.mergeReader.GetUpdatedAt(ctx, userID, tx.ID)
		if err != nil {
			logger.Log.Errorw("failed to look up record for merge", "userID", userID, "id", tx.ID, "error", err)
			res.Errors = append(res.Errors, models.PushRecordError{ID: tx.ID, Error: "internal error"})
			continue
		}

		switch {
		case stored == nil:
			if err := s.writer.InsertFromClient(ctx, userID, tx); err != nil {
				logger.Log.Errorw("failed to insert pushed record", "userID", userID, "id", tx.ID, "error", err)
				res.Errors = append(res.Errors, models.PushRecordError{ID: tx.ID, Error: "internal error"})
				continue
			}
			res.Created++
			s.publishSyncEvent(ctx, "created", userID, tx)

		case tx.UpdatedAt.After(*stored):
			if err := s.writer.UpdateFromClient(ctx, userID, tx); err != nil {
				logger.Log.Errorw("failed to update pushed record", "userID", userID, "id", tx.ID, "error", err)
				res.Errors = append(res.Errors, models.PushRecordError{ID: tx.ID, Error: "internal error"})
				continue
			}
			res.Updated++
			s.publishSyncEvent(ctx, "updated", userID, tx)

		default:
			// Older or equal incoming timestamps keep server state. Exact
			// ties are discarded so retrying an already-applied batch stays
			// a strict no-op.
			res.Conflicts++
		}
	}

	res.ServerTime = time.Now().UTC()
	return res, nil
}

// resolveCategory embeds the category for a pull row, read-through cached.
// A missing or failing category never fails the pull; the record is
// returned without an embedded category.
func (s *SyncService) resolveCategory(ctx context.Context, id string) *models.Category {
	if id == "" {
		return nil
	}

	if s.cache != nil {
		if category, err := s.cache.GetByID(ctx, id); err == nil {
			return category
		}
	}

	row, err := s.categories.GetByID(ctx, id)
	if err != nil {
		logger.Log.Errorw("failed to resolve category", "id", id, "error", err)
		return nil
	}
	if row == nil {
		return nil
	}

	category := row.Wire()
	if s.cache != nil {
		if err := s.cache.Set(ctx, category); err != nil {
			logger.Log.Errorw("failed to cache category", "id", id, "error", err)
		}
	}

	return &category
}

// publishSyncEvent publishes an accepted record to Kafka.
func (s *SyncService) publishSyncEvent(ctx context.Context, action string, userID uuid.UUID, tx models.Transaction) {
	if s.kafkaWriter == nil {
		logger.Log.Warnw("Kafka writer not configured, skipping publishing", "transaction_id", tx.ID)
		return
	}

	event := SyncEvent{
		EventID:       uuid.NewString(),
		Action:        action,
		UserID:        userID.String(),
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Type:          tx.Type,
		UpdatedAt:     tx.UpdatedAt,
		OccurredAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("Failed to marshal sync event for Kafka", "transaction_id", tx.ID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(tx.ID),
		Value: data,
	}

	if err := s.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("Failed to publish sync event to Kafka", "transaction_id", tx.ID, "error", err)
	} else {
		logger.Log.Infow("Sync event published to Kafka", "transaction_id", tx.ID, "action", action)
	}
}

// validateRecord checks the minimum field set merge correctness requires.
func validateRecord(tx models.Transaction) error {
	if tx.ID == "" {
		return errors.New("id is required")
	}
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
	if tx.UpdatedAt.IsZero() {
		return errors.New("updatedAt is required")
	}
	return nil
}
