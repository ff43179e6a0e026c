package services_test

import (
	"context"
	"database/sql"
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

func TestTransactionService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ownerID := uuid.New()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	rows := []models.TransactionDB{
		{ID: "tx-1", OwnerID: ownerID, Amount: 10, Description: "coffee", Type: models.TypeExpense, CategoryID: "cat-1", Date: ts, UpdatedAt: ts},
		{ID: "tx-2", OwnerID: ownerID, Amount: 1500, Description: "salary", Type: models.TypeIncome, CategoryID: "cat-2", Date: ts, UpdatedAt: ts.Add(time.Minute)},
	}

	feed := services.NewMockTransactionFeedReader(ctrl)
	svc := services.NewTransactionService(feed, nil, nil, nil)

	feed.EXPECT().ListChangedSince(gomock.Any(), ownerID, (*time.Time)(nil)).Return(rows, nil)

	out, err := svc.List(context.Background(), ownerID)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "tx-1", out[0].ID)
	assert.Equal(t, models.TypeIncome, out[1].Type)
}

func TestTransactionService_Create(t *testing.T) {
	ownerID := uuid.New()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	valid := models.Transaction{
		Amount:      12.50,
		Description: "groceries",
		Type:        models.TypeExpense,
		CategoryID:  "cat-1",
		Date:        ts,
	}

	tests := []struct {
		name      string
		tx        models.Transaction
		category  *models.CategoryDB
		catErr    error
		saveErr   error
		wantErr   string
		wantSaved bool
	}{
		{
			name:      "generated id",
			tx:        valid,
			category:  &models.CategoryDB{ID: "cat-1", OwnerID: ownerID, Name: "food"},
			wantSaved: true,
		},
		{
			name: "client-supplied id kept",
			tx: func() models.Transaction {
				tx := valid
				tx.ID = "tx-stable"
				return tx
			}(),
			category:  &models.CategoryDB{ID: "cat-1", OwnerID: ownerID, Name: "food"},
			wantSaved: true,
		},
		{
			name:     "unknown category",
			tx:       valid,
			category: nil,
			wantErr:  services.ErrCategoryNotFound.Error(),
		},
		{
			name: "invalid amount",
			tx: func() models.Transaction {
				tx := valid
				tx.Amount = 0
				return tx
			}(),
			wantErr: "amount must be positive",
		},
		{
			name:      "save error",
			tx:        valid,
			category:  &models.CategoryDB{ID: "cat-1", OwnerID: ownerID, Name: "food"},
			saveErr:   errors.New("db down"),
			wantErr:   "db down",
			wantSaved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			categories := services.NewMockCategoryReader(ctrl)
			writer := services.NewMockTransactionCRUDWriter(ctrl)
			svc := services.NewTransactionService(nil, nil, writer, categories)

			// Validation runs before the category lookup.
			if tt.tx.Amount > 0 {
				categories.EXPECT().GetByID(gomock.Any(), "cat-1").Return(tt.category, tt.catErr)
			}
			if tt.wantSaved {
				writer.EXPECT().
					Save(gomock.Any(), gomock.AssignableToTypeOf(models.TransactionDB{})).
					DoAndReturn(func(_ context.Context, rec models.TransactionDB) error {
						assert.NotEmpty(t, rec.ID)
						assert.Equal(t, ownerID, rec.OwnerID)
						if tt.tx.ID != "" {
							assert.Equal(t, tt.tx.ID, rec.ID)
						}
						return tt.saveErr
					})
			}

			id, err := svc.Create(context.Background(), ownerID, tt.tx)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				assert.Empty(t, id)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, id)
			}
		})
	}
}

func TestTransactionService_Update(t *testing.T) {
	ownerID := uuid.New()
	ts := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	valid := models.Transaction{
		Amount:      12.50,
		Description: "groceries",
		Type:        models.TypeExpense,
		CategoryID:  "cat-1",
		Date:        ts,
	}

	t.Run("successful update", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		reader := services.NewMockTransactionCRUDReader(ctrl)
		writer := services.NewMockTransactionCRUDWriter(ctrl)
		svc := services.NewTransactionService(nil, reader, writer, nil)

		reader.EXPECT().GetByID(gomock.Any(), ownerID, "tx-1").Return(&models.TransactionDB{ID: "tx-1", OwnerID: ownerID}, nil)
		writer.EXPECT().
			Save(gomock.Any(), gomock.AssignableToTypeOf(models.TransactionDB{})).
			DoAndReturn(func(_ context.Context, rec models.TransactionDB) error {
				assert.Equal(t, "tx-1", rec.ID)
				assert.Equal(t, ownerID, rec.OwnerID)
				return nil
			})

		err := svc.Update(context.Background(), ownerID, "tx-1", valid)
		assert.NoError(t, err)
	})

	t.Run("transaction not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		reader := services.NewMockTransactionCRUDReader(ctrl)
		writer := services.NewMockTransactionCRUDWriter(ctrl)
		svc := services.NewTransactionService(nil, reader, writer, nil)

		reader.EXPECT().GetByID(gomock.Any(), ownerID, "tx-missing").Return(nil, nil)

		err := svc.Update(context.Background(), ownerID, "tx-missing", valid)
		assert.ErrorIs(t, err, services.ErrTransactionNotFound)
	})

	t.Run("invalid fields rejected before lookup", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := services.NewTransactionService(nil, services.NewMockTransactionCRUDReader(ctrl), services.NewMockTransactionCRUDWriter(ctrl), nil)

		bad := valid
		bad.Type = "transfer"
		err := svc.Update(context.Background(), ownerID, "tx-1", bad)
		assert.EqualError(t, err, `type must be "income" or "expense"`)
	})
}

func TestTransactionService_Delete(t *testing.T) {
	ownerID := uuid.New()

	tests := []struct {
		name      string
		deleteErr error
		wantErr   error
	}{
		{name: "successful delete"},
		{name: "not found", deleteErr: sql.ErrNoRows, wantErr: services.ErrTransactionNotFound},
		{name: "repository error", deleteErr: errors.New("db down"), wantErr: errors.New("db down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			writer := services.NewMockTransactionCRUDWriter(ctrl)
			svc := services.NewTransactionService(nil, nil, writer, nil)

			writer.EXPECT().Delete(gomock.Any(), ownerID, "tx-1").Return(tt.deleteErr)

			err := svc.Delete(context.Background(), ownerID, "tx-1")
			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
