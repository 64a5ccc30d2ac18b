package reminder

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence interface for reminders and their dose
// history. List methods exclude soft-deleted rows.
type Repository interface {
	Create(ctx context.Context, r *Reminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error)
	// GetByIDForUpdate locks the row for the duration of the surrounding
	// transaction. Outside a transaction it behaves like GetByID.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Reminder, error)
	Update(ctx context.Context, r *Reminder) error
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// ListActiveByPatient returns active reminders for one patient ordered
	// soonest dose first, completed courses (null next_dose_at) last.
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Reminder, int, error)
	// ListActive returns every active reminder with a scheduled dose, for
	// the countdown engine and offline snapshot sync.
	ListActive(ctx context.Context) ([]*Reminder, error)
	CountActive(ctx context.Context) (int, error)
	// CountDue counts active reminders whose next dose time has passed
	// without an acknowledgment.
	CountDue(ctx context.Context) (int, error)

	InsertDoseEvent(ctx context.Context, ev *DoseEvent) error
	ListDoseEvents(ctx context.Context, reminderID uuid.UUID, limit, offset int) ([]*DoseEvent, int, error)
}
