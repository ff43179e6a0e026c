package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mkarpuk/finsync/internal/jwt"
	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/models"
	"github.com/mkarpuk/finsync/internal/services"
)

// TransactionTokener defines only the methods needed by the CRUD handlers.
type TransactionTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// TransactionCRUD defines the interface that the transaction service must implement.
type TransactionCRUD interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Transaction, error)
	Create(ctx context.Context, ownerID uuid.UUID, tx models.Transaction) (string, error)
	Update(ctx context.Context, ownerID uuid.UUID, id string, tx models.Transaction) error
	Delete(ctx context.Context, ownerID uuid.UUID, id string) error
}

// TransactionRequest represents the JSON body for creating or updating a transaction
// swagger:model TransactionRequest
type TransactionRequest struct {
	// Optional client-generated id; generated server-side when absent
	ID string `json:"id,omitempty"`

	// Amount, must be positive
	// required: true
	// default: 12.50
	Amount float64 `json:"amount"`

	// Description
	// required: true
	// default: groceries
	Description string `json:"description"`

	// Type, "income" or "expense"
	// required: true
	// default: expense
	Type string `json:"type"`

	// Category reference
	// required: true
	CategoryID string `json:"categoryId"`

	// Business event time, RFC3339
	// required: true
	Date time.Time `json:"date"`
}

// TransactionListResponse represents the transaction list
// swagger:model TransactionListResponse
type TransactionListResponse struct {
	Transactions []models.Transaction `json:"transactions"`
}

// TransactionCreateResponse represents a successful create response
// swagger:model TransactionCreateResponse
type TransactionCreateResponse struct {
	// Identifier of the stored transaction
	ID string `json:"id"`
}

// TransactionErrorResponse represents an error response for transaction CRUD
// swagger:model TransactionErrorResponse
type TransactionErrorResponse struct {
	// Error message
	// default: Transaction not found
	Error string `json:"error"`
}

func resolveOwner(tokenGetter TransactionTokener, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ctx := r.Context()

	tokenStr, err := tokenGetter.GetTokenFromRequest(ctx, r)
	if err != nil {
		logger.Log.Errorw("failed to get token from request", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Unauthorized"})
		return uuid.Nil, false
	}

	claims, err := tokenGetter.GetClaims(ctx, tokenStr)
	if err != nil {
		logger.Log.Errorw("failed to get claims from token", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Unauthorized"})
		return uuid.Nil, false
	}

	return claims.UserID, true
}

func (req TransactionRequest) toModel() models.Transaction {
	return models.Transaction{
		ID:          req.ID,
		Amount:      req.Amount,
		Description: req.Description,
		Type:        req.Type,
		CategoryID:  req.CategoryID,
		Date:        req.Date,
	}
}

// NewListTransactionsHandler returns an HTTP handler listing the user's transactions.
// @Summary List transactions
// @Description Returns the user's full transaction history, ascending by updatedAt.
// @Tags transactions
// @Produce json
// @Success 200 {object} handlers.TransactionListResponse "Transaction history"
// @Failure 401 {object} handlers.TransactionErrorResponse "Unauthorized"
// @Router /transactions [get]
// @Security BearerAuth
func NewListTransactionsHandler(svc TransactionCRUD, tokenGetter TransactionTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := resolveOwner(tokenGetter, w, r)
		if !ok {
			return
		}

		transactions, err := svc.List(r.Context(), ownerID)
		if err != nil {
			logger.Log.Errorw("failed to list transactions", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Internal server error"})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(TransactionListResponse{Transactions: transactions})
	}
}

// NewCreateTransactionHandler returns an HTTP handler creating a transaction.
// @Summary Create a transaction
// @Description Stores a new transaction owned by the user; updatedAt is stamped with the server clock.
// @Tags transactions
// @Accept json
// @Produce json
// @Param request body handlers.TransactionRequest true "Transaction"
// @Success 201 {object} handlers.TransactionCreateResponse "Transaction stored"
// @Failure 400 {object} handlers.TransactionErrorResponse "Invalid transaction"
// @Failure 401 {object} handlers.TransactionErrorResponse "Unauthorized"
// @Router /transactions [post]
// @Security BearerAuth
func NewCreateTransactionHandler(svc TransactionCRUD, tokenGetter TransactionTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := resolveOwner(tokenGetter, w, r)
		if !ok {
			return
		}

		var req TransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode transaction request", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Invalid request body"})
			return
		}

		id, err := svc.Create(r.Context(), ownerID, req.toModel())
		if err != nil {
			if errors.Is(err, services.ErrCategoryNotFound) {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Category not found"})
				return
			}
			logger.Log.Errorw("failed to create transaction", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: err.Error()})
			return
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(TransactionCreateResponse{ID: id})
	}
}

// NewUpdateTransactionHandler returns an HTTP handler updating a transaction.
// @Summary Update a transaction
// @Description Overwrites an existing transaction; updatedAt is stamped with the server clock.
// @Tags transactions
// @Accept json
// @Produce json
// @Param id path string true "Transaction id"
// @Param request body handlers.TransactionRequest true "Transaction"
// @Success 200 {object} handlers.TransactionCreateResponse "Transaction updated"
// @Failure 400 {object} handlers.TransactionErrorResponse "Invalid transaction"
// @Failure 401 {object} handlers.TransactionErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.TransactionErrorResponse "Transaction not found"
// @Router /transactions/{id} [put]
// @Security BearerAuth
func NewUpdateTransactionHandler(svc TransactionCRUD, tokenGetter TransactionTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := resolveOwner(tokenGetter, w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")

		var req TransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode transaction request", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Invalid request body"})
			return
		}

		if err := svc.Update(r.Context(), ownerID, id, req.toModel()); err != nil {
			if errors.Is(err, services.ErrTransactionNotFound) {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Transaction not found"})
				return
			}
			logger.Log.Errorw("failed to update transaction", "id", id, "error", err)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(TransactionCreateResponse{ID: id})
	}
}

// NewDeleteTransactionHandler returns an HTTP handler deleting a transaction.
// @Summary Delete a transaction
// @Tags transactions
// @Produce json
// @Param id path string true "Transaction id"
// @Success 204 "Transaction deleted"
// @Failure 401 {object} handlers.TransactionErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.TransactionErrorResponse "Transaction not found"
// @Router /transactions/{id} [delete]
// @Security BearerAuth
func NewDeleteTransactionHandler(svc TransactionCRUD, tokenGetter TransactionTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := resolveOwner(tokenGetter, w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")

		if err := svc.Delete(r.Context(), ownerID, id); err != nil {
			if errors.Is(err, services.ErrTransactionNotFound) {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Transaction not found"})
				return
			}
			logger.Log.Errorw("failed to delete transaction", "id", id, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(TransactionErrorResponse{Error: "Internal server error"})
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
