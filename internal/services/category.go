package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mkarpuk/finsync/internal/logger"
	"github.com/mkarpuk/finsync/internal/models"
)

// CategoryLister lists categories per owner.
type CategoryLister interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.CategoryDB, error)
}

// CategoryWriter persists categories.
type CategoryWriter interface {
	Save(ctx context.Context, rec models.CategoryDB) error
}

// CategoryService handles category listing and creation.
type CategoryService struct {
	lister CategoryLister
	writer CategoryWriter
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(lister CategoryLister, writer CategoryWriter) *CategoryService {
	return &CategoryService{lister: lister, writer: writer}
}

// List returns the user's categories ordered by name.
func (svc *CategoryService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Category, error) {
	rows, err := svc.lister.ListByOwner(ctx, ownerID)
	if err != nil {
		logger.Log.Errorw("failed to list categories", "ownerID", ownerID, "err", err)
		return nil, err
	}

	out := make([]models.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Wire())
	}
	return out, nil
}

// Create stores a new category for the user and returns it.
func (svc *CategoryService) Create(ctx context.Context, ownerID uuid.UUID, name, color string) (*models.Category, error) {
	if name == "" {
		return nil, errors.New("name is required")
	}

	rec := models.CategoryDB{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Name:    name,
		Color:   color,
	}
	if err := svc.writer.Save(ctx, rec); err != nil {
		logger.Log.Errorw("failed to save category", "name", name, "err", err)
		return nil, err
	}

	category := rec.Wire()
	return &category, nil
}
