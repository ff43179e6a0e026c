package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/mkarpuk/finsync/internal/models"
	"github.com/mkarpuk/finsync/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTransaction(id string, updatedAt time.Time) models.Transaction {
	return models.Transaction{
		ID:          id,
		Amount:      12.50,
		Description: "groceries",
		Type:        models.TypeExpense,
		CategoryID:  "cat-1",
		Date:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:   updatedAt,
	}
}

func TestSyncService_Push_MergeOutcomes(t *testing.T) {
	userID := uuid.New()
	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	older := base.Add(-time.Minute)
	newer := base.Add(time.Minute)

	tests := []struct {
		name          string
		stored        *time.Time
		incoming      time.Time
		wantCreated   int
		wantUpdated   int
		wantConflicts int
	}{
		{
			name:        "unknown id is created",
			stored:      nil,
			incoming:    base,
			wantCreated: 1,
		},
		{
			name:        "newer incoming overwrites",
			stored:      &older,
			incoming:    base,
			wantUpdated: 1,
		},
		{
			name:          "older incoming is discarded",
			stored:        &newer,
			incoming:      base,
			wantConflicts: 1,
		},
		{
			name:          "equal incoming is discarded",
			stored:        &base,
			incoming:      base,
			wantConflicts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mergeReader := services.NewMockTransactionMergeReader(ctrl)
			writer := services.NewMockTransactionMergeWriter(ctrl)

			svc := services.NewSyncService(nil, mergeReader, writer, nil, nil, nil)

			tx := validTransaction("tx-1", tt.incoming)
			mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-1").Return(tt.stored, nil)
			if tt.wantCreated > 0 {
				writer.EXPECT().InsertFromClient(gomock.Any(), userID, tx).Return(nil)
			}
			if tt.wantUpdated > 0 {
				writer.EXPECT().UpdateFromClient(gomock.Any(), userID, tx).Return(nil)
			}

			res, err := svc.Push(context.Background(), userID, []models.Transaction{tx})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCreated, res.Created)
			assert.Equal(t, tt.wantUpdated, res.Updated)
			assert.Equal(t, tt.wantConflicts, res.Conflicts)
			assert.Empty(t, res.Errors)
			assert.False(t, res.ServerTime.IsZero())
		})
	}
}

// Replaying an already-applied batch must change nothing: every record
// compares equal to its stored timestamp and lands in conflicts.
func TestSyncService_Push_ReplayIsNoOp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	batch := []models.Transaction{
		validTransaction("tx-1", ts),
		validTransaction("tx-2", ts.Add(time.Second)),
	}

	mergeReader := services.NewMockTransactionMergeReader(ctrl)
	writer := services.NewMockTransactionMergeWriter(ctrl)
	svc := services.NewSyncService(nil, mergeReader, writer, nil, nil, nil)

	// First push: both records are unknown.
	mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-1").Return(nil, nil)
	mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-2").Return(nil, nil)
	writer.EXPECT().InsertFromClient(gomock.Any(), userID, batch[0]).Return(nil)
	writer.EXPECT().InsertFromClient(gomock.Any(), userID, batch[1]).Return(nil)

	res, err := svc.Push(context.Background(), userID, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	// Replay: stored timestamps now equal the incoming ones, so no writes.
	stored1, stored2 := batch[0].UpdatedAt, batch[1].UpdatedAt
	mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-1").Return(&stored1, nil)
	mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-2").Return(&stored2, nil)

	res, err = svc.Push(context.Background(), userID, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 2, res.Conflicts)
	assert.Empty(t, res.Errors)
}

// Whichever order two versions of the same record arrive in, the newer
// timestamp wins and the older one is discarded.
func TestSyncService_Push_ArrivalOrderIrrelevant(t *testing.T) {
	userID := uuid.New()
	ts1 := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	ts2 := ts1.Add(time.Minute)
	v1 := validTransaction("tx-1", ts1)
	v2 := validTransaction("tx-1", ts2)

	t.Run("older version first", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mergeReader := services.NewMockTransactionMergeReader(ctrl)
		writer := services.NewMockTransactionMergeWriter(ctrl)
		svc := services.NewSyncService(nil, mergeReader, writer, nil, nil, nil)

		gomock.InOrder(
			mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-1").Return(nil, nil),
			writer.EXPECT().InsertFromClient(gomock.Any(), userID, v1).Return(nil),
			mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-1").Return(&ts1, nil),
			writer.EXPECT().UpdateFromClient(gomock.Any(), userID, v2).Return(nil),
		)

		res, err := svc.Push(context.Background(), userID, []models.Transaction{v1, v2})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Created)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, 0, res.Conflicts)
	})

	t.Run("newer version first", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mergeReader := services.NewMockTransactionMergeReader(ctrl)
		writer := services.NewMockTransactionMergeWriter(ctrl)
		svc := services.NewSyncService(nil, mergeReader, writer, nil, nil, nil)

		gomock.InOrder(
			mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-1").Return(nil, nil),
			writer.EXPECT().InsertFromClient(gomock.Any(), userID, v2).Return(nil),
			mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-1").Return(&ts2, nil),
		)

		res, err := svc.Push(context.Background(), userID, []models.Transaction{v2, v1})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Created)
		assert.Equal(t, 0, res.Updated)
		assert.Equal(t, 1, res.Conflicts)
	})
}

func TestSyncService_Push_MalformedRecordDoesNotAbortBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	bad := validTransaction("tx-bad", ts)
	bad.Amount = 0
	good := validTransaction("tx-good", ts)

	mergeReader := services.NewMockTransactionMergeReader(ctrl)
	writer := services.NewMockTransactionMergeWriter(ctrl)
	svc := services.NewSyncService(nil, mergeReader, writer, nil, nil, nil)

	mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-good").Return(nil, nil)
	writer.EXPECT().InsertFromClient(gomock.Any(), userID, good).Return(nil)

	res, err := svc.Push(context.Background(), userID, []models.Transaction{bad, good})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "tx-bad", res.Errors[0].ID)
	assert.Equal(t, "amount must be positive", res.Errors[0].Error)
}

func TestSyncService_Push_RepositoryErrorDoesNotAbortBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	first := validTransaction("tx-1", ts)
	second := validTransaction("tx-2", ts)

	mergeReader := services.NewMockTransactionMergeReader(ctrl)
	writer := services.NewMockTransactionMergeWriter(ctrl)
	svc := services.NewSyncService(nil, mergeReader, writer, nil, nil, nil)

	mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-1").Return(nil, errors.New("db down"))
	mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-2").Return(nil, nil)
	writer.EXPECT().InsertFromClient(gomock.Any(), userID, second).Return(nil)

	res, err := svc.Push(context.Background(), userID, []models.Transaction{first, second})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "tx-1", res.Errors[0].ID)
	assert.Equal(t, "internal error", res.Errors[0].Error)
}

func TestSyncService_Push_ValidationErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	mutate := func(f func(*models.Transaction)) models.Transaction {
		tx := validTransaction("tx-1", ts)
		f(&tx)
		return tx
	}

	tests := []struct {
		name    string
		tx      models.Transaction
		wantErr string
	}{
		{"missing id", mutate(func(tx *models.Transaction) { tx.ID = "" }), "id is required"},
		{"negative amount", mutate(func(tx *models.Transaction) { tx.Amount = -5 }), "amount must be positive"},
		{"missing description", mutate(func(tx *models.Transaction) { tx.Description = "" }), "description is required"},
		{"bad type", mutate(func(tx *models.Transaction) { tx.Type = "transfer" }), `type must be "income" or "expense"`},
		{"missing category", mutate(func(tx *models.Transaction) { tx.CategoryID = "" }), "categoryId is required"},
		{"zero date", mutate(func(tx *models.Transaction) { tx.Date = time.Time{} }), "date is required"},
		{"zero updatedAt", mutate(func(tx *models.Transaction) { tx.UpdatedAt = time.Time{} }), "updatedAt is required"},
	}

	svc := services.NewSyncService(nil, services.NewMockTransactionMergeReader(ctrl), services.NewMockTransactionMergeWriter(ctrl), nil, nil, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Push(context.Background(), userID, []models.Transaction{tt.tx})
			require.NoError(t, err)
			assert.Equal(t, 0, res.Created)
			assert.Equal(t, 0, res.Updated)
			require.Len(t, res.Errors, 1)
			assert.Equal(t, tt.wantErr, res.Errors[0].Error)
		})
	}
}

func TestSyncService_Push_PublishesSyncEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	tx := validTransaction("tx-1", ts)

	mergeReader := services.NewMockTransactionMergeReader(ctrl)
	writer := services.NewMockTransactionMergeWriter(ctrl)
	kafkaWriter := services.NewMockKafkaWriter(ctrl)
	svc := services.NewSyncService(nil, mergeReader, writer, nil, nil, kafkaWriter)

	mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-1").Return(nil, nil)
	writer.EXPECT().InsertFromClient(gomock.Any(), userID, tx).Return(nil)
	kafkaWriter.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(nil)

	res, err := svc.Push(context.Background(), userID, []models.Transaction{tx})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
}

// A Kafka failure is logged, never surfaced: the merge already happened.
func TestSyncService_Push_KafkaFailureDoesNotFailPush(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	tx := validTransaction("tx-1", ts)

	mergeReader := services.NewMockTransactionMergeReader(ctrl)
	writer := services.NewMockTransactionMergeWriter(ctrl)
	kafkaWriter := services.NewMockKafkaWriter(ctrl)
	svc := services.NewSyncService(nil, mergeReader, writer, nil, nil, kafkaWriter)

	mergeReader.EXPECT().GetUpdatedAt(gomock.Any(), userID, "tx-1").Return(nil, nil)
	writer.EXPECT().InsertFromClient(gomock.Any(), userID, tx).Return(nil)
	kafkaWriter.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("broker unavailable"))

	res, err := svc.Push(context.Background(), userID, []models.Transaction{tx})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Empty(t, res.Errors)
}

func TestSyncService_Pull(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	since := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	rows := []models.TransactionDB{
		{ID: "tx-1", OwnerID: userID, Amount: 10, Description: "coffee", Type: models.TypeExpense, CategoryID: "cat-1", Date: since, UpdatedAt: since.Add(time.Minute)},
		{ID: "tx-2", OwnerID: userID, Amount: 20, Description: "lunch", Type: models.TypeExpense, CategoryID: "cat-1", Date: since, UpdatedAt: since.Add(2 * time.Minute)},
	}
	category := models.Category{ID: "cat-1", Name: "food", Color: "#ff8800"}

	feed := services.NewMockTransactionFeedReader(ctrl)
	categories := services.NewMockCategoryReader(ctrl)
	cache := services.NewMockCategoryCache(ctrl)
	svc := services.NewSyncService(feed, nil, nil, categories, cache, nil)

	feed.EXPECT().ListChangedSince(gomock.Any(), userID, &since).Return(rows, nil)
	// Both rows share one category: resolved once per pull, via cache miss,
	// DB lookup, then cache fill.
	cache.EXPECT().GetByID(gomock.Any(), "cat-1").Return(nil, errors.New("category cat-1 not found in cache"))
	categories.EXPECT().GetByID(gomock.Any(), "cat-1").Return(&models.CategoryDB{ID: "cat-1", OwnerID: userID, Name: "food", Color: "#ff8800"}, nil)
	cache.EXPECT().Set(gomock.Any(), category).Return(nil)

	res, err := svc.Pull(context.Background(), userID, &since)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, "tx-1", res.Transactions[0].ID)
	assert.Equal(t, "tx-2", res.Transactions[1].ID)
	require.NotNil(t, res.Transactions[0].Category)
	assert.Equal(t, category, *res.Transactions[0].Category)
	require.NotNil(t, res.Transactions[1].Category)
	assert.False(t, res.ServerTime.IsZero())
}

func TestSyncService_Pull_CacheHitSkipsDatabase(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	rows := []models.TransactionDB{
		{ID: "tx-1", OwnerID: userID, Amount: 10, Description: "coffee", Type: models.TypeExpense, CategoryID: "cat-1", Date: ts, UpdatedAt: ts},
	}
	category := models.Category{ID: "cat-1", Name: "food"}

	feed := services.NewMockTransactionFeedReader(ctrl)
	categories := services.NewMockCategoryReader(ctrl)
	cache := services.NewMockCategoryCache(ctrl)
	svc := services.NewSyncService(feed, nil, nil, categories, cache, nil)

	feed.EXPECT().ListChangedSince(gomock.Any(), userID, (*time.Time)(nil)).Return(rows, nil)
	cache.EXPECT().GetByID(gomock.Any(), "cat-1").Return(&category, nil)

	res, err := svc.Pull(context.Background(), userID, nil)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	require.NotNil(t, res.Transactions[0].Category)
	assert.Equal(t, category, *res.Transactions[0].Category)
}

// A category that cannot be resolved never fails the pull; the record
// simply comes back without an embedded category.
func TestSyncService_Pull_CategoryFailureDegrades(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	rows := []models.TransactionDB{
		{ID: "tx-1", OwnerID: userID, Amount: 10, Description: "coffee", Type: models.TypeExpense, CategoryID: "cat-1", Date: ts, UpdatedAt: ts},
	}

	feed := services.NewMockTransactionFeedReader(ctrl)
	categories := services.NewMockCategoryReader(ctrl)
	cache := services.NewMockCategoryCache(ctrl)
	svc := services.NewSyncService(feed, nil, nil, categories, cache, nil)

	feed.EXPECT().ListChangedSince(gomock.Any(), userID, (*time.Time)(nil)).Return(rows, nil)
	cache.EXPECT().GetByID(gomock.Any(), "cat-1").Return(nil, errors.New("redis down"))
	categories.EXPECT().GetByID(gomock.Any(), "cat-1").Return(nil, errors.New("db down"))

	res, err := svc.Pull(context.Background(), userID, nil)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Nil(t, res.Transactions[0].Category)
}

func TestSyncService_Pull_FeedError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := uuid.New()
	feed := services.NewMockTransactionFeedReader(ctrl)
	svc := services.NewSyncService(feed, nil, nil, nil, nil, nil)

	feed.EXPECT().ListChangedSince(gomock.Any(), userID, (*time.Time)(nil)).Return(nil, errors.New("db down"))

	res, err := svc.Pull(context.Background(), userID, nil)
	assert.Nil(t, res)
	assert.EqualError(t, err, "db down")
}
