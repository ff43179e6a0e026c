package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// Transaction is the wire representation of a financial transaction as
// exchanged by the sync endpoints and cached on client devices.
// The id is client-generated and stable across syncs; updated_at is the
// sole authority for conflict resolution.
type Transaction struct {
	ID          string    `json:"id"`                 // Client-generated stable identifier
	Amount      float64   `json:"amount"`             // Positive monetary value
	Description string    `json:"description"`        // Free-form description
	Type        string    `json:"type"`               // "income" or "expense"
	CategoryID  string    `json:"categoryId"`         // Category reference
	Date        time.Time `json:"date"`               // Business event time
	UpdatedAt   time.Time `json:"updatedAt"`          // Last-modification timestamp
	Category    *Category `json:"category,omitempty"` // Embedded on pull responses
}

// TransactionDB represents a transaction row in the database
type TransactionDB struct {
	ID          string    `json:"id" db:"id"`                   // Primary key, client-generated
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`       // Owning user
	Amount      float64   `json:"amount" db:"amount"`           // Monetary value
	Description string    `json:"description" db:"description"` // Free-form description
	Type        string    `json:"type" db:"type"`               // "income" or "expense"
	CategoryID  string    `json:"category_id" db:"category_id"` // Category reference
	Date        time.Time `json:"date" db:"date"`               // Business event time
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`   // Conflict-resolution timestamp
	CreatedAt   time.Time `json:"created_at" db:"created_at"`   // Server bookkeeping, not merged
}

// Wire converts a row into its wire representation. The embedded category
// is resolved separately.
func (t TransactionDB) Wire() Transaction {
	return Transaction{
		ID:          t.ID,
		Amount:      t.Amount,
		Description: t.Description,
		Type:        t.Type,
		CategoryID:  t.CategoryID,
		Date:        t.Date,
		UpdatedAt:   t.UpdatedAt,
	}
}
