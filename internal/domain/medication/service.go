package medication

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a medication does not exist.
var ErrNotFound = errors.New("medication not found")

type Service struct {
	medications Repository
}

func NewService(meds Repository) *Service {
	return &Service{medications: meds}
}

func (s *Service) Create(ctx context.Context, m *Medication) error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.medications.Create(ctx, m)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := s.medications.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *Service) Update(ctx context.Context, m *Medication) error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := s.medications.GetByID(ctx, m.ID); err != nil {
		return ErrNotFound
	}
	return s.medications.Update(ctx, m)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.medications.GetByID(ctx, id); err != nil {
		return ErrNotFound
	}
	return s.medications.Delete(ctx, id)
}

// Search finds catalog entries matching the query by brand or generic name.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Medication, int, error) {
	return s.medications.Search(ctx, query, limit, offset)
}
