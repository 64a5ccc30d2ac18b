package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// ListByPatient returns a patient's appointments, soonest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// ListUpcoming returns booked future appointments for a patient.
	ListUpcoming(ctx context.Context, patientID uuid.UUID, limit int) ([]*Appointment, error)
}
