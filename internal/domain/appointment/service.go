package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an appointment does not exist.
	ErrNotFound = errors.New("appointment not found")
	// ErrFinalStatus is returned when cancelling or completing an
	// appointment that already reached a terminal status.
	ErrFinalStatus = errors.New("appointment already cancelled or completed")
)

var validStatuses = map[string]bool{
	StatusBooked: true, StatusCancelled: true, StatusCompleted: true,
}

type Service struct {
	appointments Repository
	now          func() time.Time
}

func NewService(appts Repository) *Service {
	return &Service{appointments: appts, now: time.Now}
}

func (s *Service) Create(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.ClinicianUserID == "" {
		return fmt.Errorf("clinician_user_id is required")
	}
	if a.StartAt.IsZero() {
		return fmt.Errorf("start_at is required")
	}
	if a.EndAt != nil && !a.EndAt.After(a.StartAt) {
		return fmt.Errorf("end_at must be after start_at")
	}
	if a.Status == "" {
		a.Status = StatusBooked
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("invalid status: %s", a.Status)
	}
	return s.appointments.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// Cancel moves a booked appointment to cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled)
}

// Complete moves a booked appointment to completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to string) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if a.Status != StatusBooked {
		return nil, ErrFinalStatus
	}
	a.Status = to
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListUpcoming(ctx context.Context, patientID uuid.UUID, limit int) ([]*Appointment, error) {
	return s.appointments.ListUpcoming(ctx, patientID, limit)
}
