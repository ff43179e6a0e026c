package models

import (
	"time"

	"github.com/google/uuid"
)

// Category is the wire representation embedded in pull responses.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CategoryDB represents a category row in the database
type CategoryDB struct {
	ID        string    `json:"id" db:"id"`                 // Primary key
	OwnerID   uuid.UUID `json:"owner_id" db:"owner_id"`     // Owning user
	Name      string    `json:"name" db:"name"`             // Unique per owner
	Color     string    `json:"color" db:"color"`           // Display color, e.g. "#ff8800"
	CreatedAt time.Time `json:"created_at" db:"created_at"` // Creation timestamp
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // Last update timestamp
}

// Wire converts a category row into its wire representation.
func (c CategoryDB) Wire() Category {
	return Category{ID: c.ID, Name: c.Name, Color: c.Color}
}
