package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/models"
)

// CategoryCRUD defines the interface that the category service must implement.
type CategoryCRUD interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Category, error)
	Create(ctx context.Context, ownerID uuid.UUID, name, color string) (*models.Category, error)
}

// CategoryRequest represents the JSON body for creating a category
// swagger:model CategoryRequest
type CategoryRequest struct {
	// Name, unique per user
	// required: true
	// default: groceries
	Name string `json:"name"`

	// Display color
	// default: #ff8800
	Color string `json:"color"`
}

// CategoryListResponse represents the category list
// swagger:model CategoryListResponse
type CategoryListResponse struct {
	Categories []models.Category `json:"categories"`
}

// CategoryErrorResponse represents an error response for category endpoints
// swagger:model CategoryErrorResponse
type CategoryErrorResponse struct {
	// Error message
	// default: name is required
	Error string `json:"error"`
}

// NewListCategoriesHandler returns an HTTP handler listing the user's categories.
// @Summary List categories
// @Tags categories
// @Produce json
// @Success 200 {object} handlers.CategoryListResponse "Categories ordered by name"
// @Failure 401 {object} handlers.CategoryErrorResponse "Unauthorized"
// @Router /categories [get]
// @Security BearerAuth
func NewListCategoriesHandler(svc CategoryCRUD, tokenGetter TransactionTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := resolveOwner(tokenGetter, w, r)
		if !ok {
			return
		}

		categories, err := svc.List(r.Context(), ownerID)
		if err != nil {
			logger.Log.Errorw("failed to list categories", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(CategoryErrorResponse{Error: "Internal server error"})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(CategoryListResponse{Categories: categories})
	}
}

// NewCreateCategoryHandler returns an HTTP handler creating a category.
// @Summary Create a category
// @Tags categories
// @Accept json
// @Produce json
// @Param request body handlers.CategoryRequest true "Category"
// @Success 201 {object} models.Category "Category stored"
// @Failure 400 {object} handlers.CategoryErrorResponse "Invalid category"
// @Failure 401 {object} handlers.CategoryErrorResponse "Unauthorized"
// @Router /categories [post]
// @Security BearerAuth
func NewCreateCategoryHandler(svc CategoryCRUD, tokenGetter TransactionTokener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := resolveOwner(tokenGetter, w, r)
		if !ok {
			return
		}

		var req CategoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode category request", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(CategoryErrorResponse{Error: "Invalid request body"})
			return
		}

		category, err := svc.Create(r.Context(), ownerID, req.Name, req.Color)
		if err != nil {
			logger.Log.Errorw("failed to create category", "name", req.Name, "error", err)
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(CategoryErrorResponse{Error: err.Error()})
			return
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(category)
	}
}
