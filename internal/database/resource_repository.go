package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/localbazaar/reservation-backend/internal/models"
)

// ResourceColumns lists the columns scanned into models.Resource
var ResourceColumns = []string{
	"id", "owner_id", "name", "category", "capacity_unit", "unit_price",
	"total_capacity", "max_party_size", "slot_minutes", "is_active",
	"created_at", "updated_at",
}

var resourceSelect = "SELECT " + strings.Join(ResourceColumns, ", ") + " FROM resources"

// ResourceRepository reads the vendor-owned resource catalog
type ResourceRepository struct {
	db DB
}

// NewResourceRepository creates a new ResourceRepository
func NewResourceRepository(db DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// GetByID returns a resource, or nil if it does not exist
func (r *ResourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Resource, error) {
	var resource models.Resource
	err := r.db.GetContext(ctx, &resource, resourceSelect+" WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return &resource, nil
}

// LockByID reads a resource under a row lock. Every booking creation on the
// same resource queues behind this lock until the creating transaction ends.
func (r *ResourceRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Resource, error) {
	var resource models.Resource
	err := tx.GetContext(ctx, &resource, resourceSelect+" WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock resource: %w", err)
	}
	return &resource, nil
}
