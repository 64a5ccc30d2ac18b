package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// Search matches the query case-insensitively against first and last
	// name. An empty query lists everyone.
	Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error)

	Assign(ctx context.Context, a *ClinicianAssignment) error
	Unassign(ctx context.Context, patientID uuid.UUID, clinicianUserID string) error
	ListAssignments(ctx context.Context, clinicianUserID string) ([]*ClinicianAssignment, error)
	IsAssigned(ctx context.Context, patientID uuid.UUID, clinicianUserID string) (bool, error)
}
