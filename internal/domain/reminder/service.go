package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dosewatch/dosewatch/internal/platform/db"
	"github.com/dosewatch/dosewatch/internal/platform/telemetry"
)

var (
	// ErrNotFound is returned when a reminder does not exist or is deleted.
	ErrNotFound = errors.New("reminder not found")
	// ErrCompleted is returned when a dose is acknowledged on a reminder
	// whose course is already finished.
	ErrCompleted = errors.New("reminder course already completed")
)

type Service struct {
	reminders Repository
	tp        *telemetry.TelemetryProvider
	runTx     func(ctx context.Context, fn func(ctx context.Context) error) error
	now       func() time.Time
	changed   chan struct{}
}

// NewService constructs a Service. pool may be nil (tests), in which case
// repository calls run outside a transaction.
func NewService(repo Repository, pool *pgxpool.Pool, tp *telemetry.TelemetryProvider) *Service {
	s := &Service{
		reminders: repo,
		tp:        tp,
		now:       time.Now,
		changed:   make(chan struct{}, 1),
	}
	if pool != nil {
		s.runTx = func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.RunInTx(ctx, pool, fn)
		}
	} else {
		s.runTx = func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		}
	}
	return s
}

func (s *Service) count(entity, op string) {
	if s.tp != nil {
		s.tp.OperationCounter(entity, op)
	}
}

// Changes signals after every mutation so a co-resident agent can refresh
// immediately instead of waiting for its next poll.
func (s *Service) Changes() <-chan struct{} {
	return s.changed
}

func (s *Service) notifyChanged() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Create validates and stores a new reminder. The first dose is scheduled one
// full interval from now.
func (s *Service) Create(ctx context.Context, r *Reminder) error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if r.MedicationName == "" {
		return fmt.Errorf("medication_name is required")
	}
	if r.IntervalSeconds <= 0 {
		return fmt.Errorf("interval_seconds must be positive")
	}
	if r.TotalDoses <= 0 {
		return fmt.Errorf("total_doses must be positive")
	}

	r.CompletedDoses = 0
	r.Active = true
	next := s.now().UTC().Add(r.Interval())
	r.NextDoseAt = &next

	if err := s.reminders.Create(ctx, r); err != nil {
		return err
	}
	s.count("reminder", "create")
	s.notifyChanged()
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	r, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r, nil
}

// MarkTaken acknowledges the pending dose. In a single transaction it records
// the dose event (with the dose time that was scheduled, not the ack time),
// advances next_dose_at one interval from the acknowledgment, and deactivates
// the reminder when the course completes. The history row is written before
// the reminder row so a mid-transaction failure can never advance the
// schedule without the matching history entry.
func (s *Service) MarkTaken(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	var out *Reminder
	err := s.runTx(ctx, func(ctx context.Context) error {
		r, err := s.reminders.GetByIDForUpdate(ctx, id)
		if err != nil {
			return ErrNotFound
		}
		if !r.Active || r.NextDoseAt == nil || r.Completed() {
			return ErrCompleted
		}

		ackTime := s.now().UTC()
		ev := &DoseEvent{
			ReminderID:  r.ID,
			ScheduledAt: *r.NextDoseAt,
			TakenAt:     ackTime,
		}
		if err := s.reminders.InsertDoseEvent(ctx, ev); err != nil {
			return fmt.Errorf("record dose event: %w", err)
		}

		r.CompletedDoses++
		if r.Completed() {
			r.Active = false
			r.NextDoseAt = nil
		} else {
			next := ackTime.Add(r.Interval())
			r.NextDoseAt = &next
		}
		if err := s.reminders.Update(ctx, r); err != nil {
			return fmt.Errorf("update reminder: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.count("reminder", "taken")
	if out.Completed() {
		s.count("reminder", "completed")
	}
	s.notifyChanged()
	return out, nil
}

// Delete soft-deletes a reminder. Deleted reminders disappear from every
// listing but their dose history is retained.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.reminders.GetByID(ctx, id); err != nil {
		return ErrNotFound
	}
	if err := s.reminders.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.count("reminder", "delete")
	s.notifyChanged()
	return nil
}

// ListActive returns the active reminders for a patient, soonest dose first.
func (s *Service) ListActive(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Reminder, int, error) {
	return s.reminders.ListActiveByPatient(ctx, patientID, limit, offset)
}

// ListAllActive returns every active scheduled reminder across patients.
func (s *Service) ListAllActive(ctx context.Context) ([]*Reminder, error) {
	return s.reminders.ListActive(ctx)
}

// CountActive returns the number of active reminders across all patients.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.reminders.CountActive(ctx)
}

// CountDue returns the number of active reminders with an unacknowledged dose
// past its scheduled time.
func (s *Service) CountDue(ctx context.Context) (int, error) {
	return s.reminders.CountDue(ctx)
}

// History returns the dose events for a reminder, most recent first.
func (s *Service) History(ctx context.Context, reminderID uuid.UUID, limit, offset int) ([]*DoseEvent, int, error) {
	if _, err := s.reminders.GetByID(ctx, reminderID); err != nil {
		return nil, 0, ErrNotFound
	}
	return s.reminders.ListDoseEvents(ctx, reminderID, limit, offset)
}
