package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mkarpuk/finsync/internal/jwt"
	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/models"
	"github.com/mkarpuk/finsync/internal/services"
)

// PushTokener defines only the methods needed by this handler.
type PushTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// Pusher defines the interface that the merge resolver must implement.
type Pusher interface {
	Push(ctx context.Context, userID uuid.UUID, batch []models.Transaction) (*services.PushResult, error)
}

// PushRequest represents the JSON body for a push request
// swagger:model PushRequest
type PushRequest struct {
	// Client-originated transactions to merge
	Transactions []models.Transaction `json:"transactions"`
}

// PushData carries per-record merge counts for one batch.
type PushData struct {
	Created   int                      `json:"created"`
	Updated   int                      `json:"updated"`
	Conflicts int                      `json:"conflicts"`
	Errors    []models.PushRecordError `json:"errors"`

	// Server-generated timestamp the client must adopt as its new cursor
	ServerTime time.Time `json:"serverTime"`
}

// PushResponse represents a successful push response
// swagger:model PushResponse
type PushResponse struct {
	Success bool     `json:"success"`
	Data    PushData `json:"data"`
}

// PushErrorResponse represents an error response for push
// swagger:model PushErrorResponse
type PushErrorResponse struct {
	Success bool `json:"success"`

	// Error message
	// default: Invalid request body
	Error string `json:"error"`
}

// NewPushHandler returns an HTTP handler for the sync push endpoint.
// @Summary Push local changes
// @Description Merges a batch of client-originated transactions record by record: unknown ids are created, newer updatedAt overwrites, older or equal updatedAt is discarded as a conflict. Malformed records are reported per-record and never abort the batch.
// @Tags sync
// @Accept json
// @Produce json
// @Param pushRequest body handlers.PushRequest true "Push Request"
// @Success 200 {object} handlers.PushResponse "Per-record merge counts"
// @Failure 400 {object} handlers.PushErrorResponse "Invalid request body"
// @Failure 401 {object} handlers.PushErrorResponse "Unauthorized"
// @Router /sync/push [post]
// @Security BearerAuth
func NewPushHandler(
	svc Pusher,
	tokenGetter PushTokener,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tokenStr, err := tokenGetter.GetTokenFromRequest(ctx, r)
		if err != nil {
			logger.Log.Errorw("failed to get token from request", "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(PushErrorResponse{Error: "Unauthorized"})
			return
		}

		claims, err := tokenGetter.GetClaims(ctx, tokenStr)
		if err != nil {
			logger.Log.Errorw("failed to get claims from token", "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(PushErrorResponse{Error: "Unauthorized"})
			return
		}

		var req PushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode push request", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(PushErrorResponse{Error: "Invalid request body"})
			return
		}

		result, err := svc.Push(ctx, claims.UserID, req.Transactions)
		if err != nil {
			logger.Log.Errorw("push failed", "userID", claims.UserID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(PushErrorResponse{Error: "Internal server error"})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(PushResponse{
			Success: true,
			Data: PushData{
				Created:    result.Created,
				Updated:    result.Updated,
				Conflicts:  result.Conflicts,
				Errors:     result.Errors,
				ServerTime: result.ServerTime,
			},
		})
	}
}
