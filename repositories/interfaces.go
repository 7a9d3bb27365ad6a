package repositories

import (
	"context"
	"time"

	"github.com/ferreteria/storefront/models"
)

// AccessEventFilter narrows an access event listing. Zero values match everything.
type AccessEventFilter struct {
	Action  models.AccessAction
	Subject string
	Since   time.Time
	Limit   int
	Offset  int
}

// AccessEventRepository handles access event data operations
type AccessEventRepository interface {
	// Insert inserts a new access event
	Insert(ctx context.Context, event *models.AccessEvent) error

	// List retrieves access events, newest first
	List(ctx context.Context, filter AccessEventFilter) ([]*models.AccessEvent, error)

	// DeleteBefore removes events older than cutoff and returns how many were removed
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	AccessEvents AccessEventRepository
}
