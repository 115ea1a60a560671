// Package history keeps per-customer cart undo/redo stacks outside the
// request lifecycle, either in process memory or in Redis.
package history

import (
	"context"

	"github.com/google/uuid"

	"perfume-storefront/internal/domain"
)

type Store interface {
	// Load returns nil, nil when the customer has no history yet.
	Load(ctx context.Context, customerID uuid.UUID) (*domain.CartHistory, error)
	Save(ctx context.Context, customerID uuid.UUID, h *domain.CartHistory) error
	Delete(ctx context.Context, customerID uuid.UUID) error
}
