package medication

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	store map[uuid.UUID]*Medication
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Medication)}
}

func (m *mockRepo) Create(_ context.Context, med *Medication) error {
	med.ID = uuid.New()
	m.store[med.ID] = med
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	med, ok := m.store[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	return med, nil
}

func (m *mockRepo) Update(_ context.Context, med *Medication) error {
	if _, ok := m.store[med.ID]; !ok {
		return fmt.Errorf("no rows")
	}
	m.store[med.ID] = med
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.store, id)
	return nil
}

func (m *mockRepo) Search(_ context.Context, query string, limit, offset int) ([]*Medication, int, error) {
	var items []*Medication
	q := strings.ToLower(query)
	for _, med := range m.store {
		if q == "" || strings.Contains(strings.ToLower(med.Name), q) ||
			(med.GenericName != nil && strings.Contains(strings.ToLower(*med.GenericName), q)) {
			items = append(items, med)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, len(items), nil
}

func newTestService() *Service {
	return NewService(newMockRepo())
}

// -- Service Tests --

func TestCreate_Success(t *testing.T) {
	svc := newTestService()
	gen := "metformin hydrochloride"
	m := &Medication{Name: "Glucophage", GenericName: &gen}
	if err := svc.Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
}

func TestCreate_RequiresName(t *testing.T) {
	svc := newTestService()
	if err := svc.Create(context.Background(), &Medication{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSearch_MatchesGenericName(t *testing.T) {
	svc := newTestService()
	gen := "acetylsalicylic acid"
	_ = svc.Create(context.Background(), &Medication{Name: "Aspirin", GenericName: &gen})
	_ = svc.Create(context.Background(), &Medication{Name: "Metformin"})

	items, total, err := svc.Search(context.Background(), "salicylic", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].Name != "Aspirin" {
		t.Errorf("expected Aspirin via generic name, got %v", items)
	}
}

func TestSearch_EmptyQueryListsAll(t *testing.T) {
	svc := newTestService()
	_ = svc.Create(context.Background(), &Medication{Name: "Aspirin"})
	_ = svc.Create(context.Background(), &Medication{Name: "Metformin"})

	_, total, err := svc.Search(context.Background(), "", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 results, got %d", total)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc := newTestService()
	m := &Medication{ID: uuid.New(), Name: "Aspirin"}
	if err := svc.Update(context.Background(), m); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc := newTestService()
	if err := svc.Delete(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMedication_Label(t *testing.T) {
	strength := "500mg"
	form := "tablet"
	tests := []struct {
		name string
		med  Medication
		want string
	}{
		{"full", Medication{Name: "Metformin", Strength: &strength, Form: &form}, "Metformin 500mg (tablet)"},
		{"name only", Medication{Name: "Metformin"}, "Metformin"},
		{"no form", Medication{Name: "Metformin", Strength: &strength}, "Metformin 500mg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.med.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}
