package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a patient does not exist.
var ErrNotFound = errors.New("patient not found")

type Service struct {
	patients Repository
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.FirstName == "" && p.LastName == "" {
		return fmt.Errorf("name is required")
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %s", p.Timezone)
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.FirstName == "" && p.LastName == "" {
		return fmt.Errorf("name is required")
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return fmt.Errorf("invalid timezone: %s", p.Timezone)
		}
	}
	if _, err := s.patients.GetByID(ctx, p.ID); err != nil {
		return ErrNotFound
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, query, limit, offset)
}

// Assign links a clinician to a patient. Repeated assignment is a no-op.
func (s *Service) Assign(ctx context.Context, patientID uuid.UUID, clinicianUserID string) (*ClinicianAssignment, error) {
	if clinicianUserID == "" {
		return nil, fmt.Errorf("clinician_user_id is required")
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, ErrNotFound
	}
	a := &ClinicianAssignment{PatientID: patientID, ClinicianUserID: clinicianUserID}
	if err := s.patients.Assign(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Unassign(ctx context.Context, patientID uuid.UUID, clinicianUserID string) error {
	return s.patients.Unassign(ctx, patientID, clinicianUserID)
}

// AssignedPatients returns the patients a clinician is linked to.
func (s *Service) AssignedPatients(ctx context.Context, clinicianUserID string) ([]*Patient, error) {
	assignments, err := s.patients.ListAssignments(ctx, clinicianUserID)
	if err != nil {
		return nil, err
	}
	var out []*Patient
	for _, a := range assignments {
		p, err := s.patients.GetByID(ctx, a.PatientID)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// IsAssigned reports whether a clinician is linked to a patient.
func (s *Service) IsAssigned(ctx context.Context, patientID uuid.UUID, clinicianUserID string) (bool, error) {
	return s.patients.IsAssigned(ctx, patientID, clinicianUserID)
}
