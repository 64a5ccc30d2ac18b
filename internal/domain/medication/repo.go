package medication

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	Update(ctx context.Context, m *Medication) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Search matches the query case-insensitively against the brand and
	// generic names. An empty query lists the whole catalog.
	Search(ctx context.Context, query string, limit, offset int) ([]*Medication, int, error)
}
