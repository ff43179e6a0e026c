package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mkarpuk/finsync/internal/jwt"
	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/models"
	"github.com/mkarpuk/finsync/internal/services"
)

// PullTokener defines only the methods needed by this handler.
type PullTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// Puller defines the interface that the sync service must implement.
type Puller interface {
	Pull(ctx context.Context, userID uuid.UUID, since *time.Time) (*services.PullResult, error)
}

// PullRequest represents the JSON body for a pull request
// swagger:model PullRequest
type PullRequest struct {
	// Last successful sync cursor, RFC3339. Absent on first sync.
	// default: 2024-01-01T00:00:00Z
	LastSync *string `json:"lastSync,omitempty"`
}

// PullData carries the pull window and the new cursor value.
type PullData struct {
	// Transactions changed after the cursor, ascending by updatedAt
	Transactions []models.Transaction `json:"transactions"`

	// Server-generated timestamp the client must adopt as its new cursor
	ServerTime time.Time `json:"serverTime"`
}

// PullResponse represents a successful pull response
// swagger:model PullResponse
type PullResponse struct {
	Success bool     `json:"success"`
	Data    PullData `json:"data"`
}

// PullErrorResponse represents an error response for pull
// swagger:model PullErrorResponse
type PullErrorResponse struct {
	Success bool `json:"success"`

	// Error message
	// default: Invalid lastSync timestamp
	Error string `json:"error"`
}

// NewPullHandler returns an HTTP handler for the sync pull endpoint.
// @Summary Pull changed transactions
// @Description Returns every transaction changed since the supplied cursor (the full history when absent), ascending by updatedAt, plus the serverTime the client must adopt as its new cursor.
// @Tags sync
// @Accept json
// @Produce json
// @Param pullRequest body handlers.PullRequest true "Pull Request"
// @Success 200 {object} handlers.PullResponse "Changed transactions and new cursor"
// @Failure 400 {object} handlers.PullErrorResponse "Invalid request body or timestamp"
// @Failure 401 {object} handlers.PullErrorResponse "Unauthorized"
// @Router /sync/pull [post]
// @Security BearerAuth
func NewPullHandler(
	svc Puller,
	tokenGetter PullTokener,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tokenStr, err := tokenGetter.GetTokenFromRequest(ctx, r)
		if err != nil {
			logger.Log.Errorw("failed to get token from request", "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(PullErrorResponse{Error: "Unauthorized"})
			return
		}

		claims, err := tokenGetter.GetClaims(ctx, tokenStr)
		if err != nil {
			logger.Log.Errorw("failed to get claims from token", "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(PullErrorResponse{Error: "Unauthorized"})
			return
		}

		// The body is optional: a first sync may post nothing at all.
		var req PullRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			logger.Log.Errorw("failed to decode pull request", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(PullErrorResponse{Error: "Invalid request body"})
			return
		}

		var since *time.Time
		if req.LastSync != nil && *req.LastSync != "" {
			parsed, err := time.Parse(time.RFC3339, *req.LastSync)
			if err != nil {
				logger.Log.Errorw("failed to parse lastSync", "lastSync", *req.LastSync, "error", err)
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(PullErrorResponse{Error: "Invalid lastSync timestamp"})
				return
			}
			since = &parsed
		}

		result, err := svc.Pull(ctx, claims.UserID, since)
		if err != nil {
			logger.Log.Errorw("pull failed", "userID", claims.UserID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(PullErrorResponse{Error: "Internal server error"})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(PullResponse{
			Success: true,
			Data: PullData{
				Transactions: result.Transactions,
				ServerTime:   result.ServerTime,
			},
		})
	}
}
