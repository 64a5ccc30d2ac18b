package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	store map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	m.store[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.store[id]
	if !ok {
		return nil, fmt.Errorf("no rows")
	}
	return a, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.store[a.ID]; !ok {
		return fmt.Errorf("no rows")
	}
	m.store[a.ID] = a
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, pid uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var items []*Appointment
	for _, a := range m.store {
		if a.PatientID == pid {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartAt.Before(items[j].StartAt) })
	return items, len(items), nil
}

func (m *mockRepo) ListUpcoming(_ context.Context, pid uuid.UUID, limit int) ([]*Appointment, error) {
	now := time.Now()
	var items []*Appointment
	for _, a := range m.store {
		if a.PatientID == pid && a.Upcoming(now) {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartAt.Before(items[j].StartAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func newTestService() *Service {
	return NewService(newMockRepo())
}

func booked(pid uuid.UUID, start time.Time) *Appointment {
	return &Appointment{
		PatientID:       pid,
		ClinicianUserID: "clin-1",
		StartAt:         start,
	}
}

// -- Service Tests --

func TestCreate_DefaultsToBooked(t *testing.T) {
	svc := newTestService()
	a := booked(uuid.New(), time.Now().Add(24*time.Hour))
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusBooked {
		t.Errorf("expected booked, got %q", a.Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService()
	start := time.Now().Add(time.Hour)
	endBefore := start.Add(-time.Minute)
	tests := []struct {
		name string
		a    Appointment
	}{
		{"missing patient", Appointment{ClinicianUserID: "clin-1", StartAt: start}},
		{"missing clinician", Appointment{PatientID: uuid.New(), StartAt: start}},
		{"missing start", Appointment{PatientID: uuid.New(), ClinicianUserID: "clin-1"}},
		{"end before start", Appointment{PatientID: uuid.New(), ClinicianUserID: "clin-1", StartAt: start, EndAt: &endBefore}},
		{"bad status", Appointment{PatientID: uuid.New(), ClinicianUserID: "clin-1", StartAt: start, Status: "tentative"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Create(context.Background(), &tt.a); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCancel_Booked(t *testing.T) {
	svc := newTestService()
	a := booked(uuid.New(), time.Now().Add(time.Hour))
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Cancel(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %q", got.Status)
	}

	// Terminal statuses reject further transitions.
	if _, err := svc.Complete(context.Background(), a.ID); !errors.Is(err, ErrFinalStatus) {
		t.Errorf("expected ErrFinalStatus, got %v", err)
	}
}

func TestComplete_Booked(t *testing.T) {
	svc := newTestService()
	a := booked(uuid.New(), time.Now().Add(time.Hour))
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Complete(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %q", got.Status)
	}
}

func TestCancel_NotFound(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Cancel(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListUpcoming_ExcludesPastAndCancelled(t *testing.T) {
	svc := newTestService()
	pid := uuid.New()

	future := booked(pid, time.Now().Add(2*time.Hour))
	if err := svc.Create(context.Background(), future); err != nil {
		t.Fatal(err)
	}
	past := booked(pid, time.Now().Add(-2*time.Hour))
	if err := svc.Create(context.Background(), past); err != nil {
		t.Fatal(err)
	}
	cancelled := booked(pid, time.Now().Add(3*time.Hour))
	if err := svc.Create(context.Background(), cancelled); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Cancel(context.Background(), cancelled.ID); err != nil {
		t.Fatal(err)
	}

	items, err := svc.ListUpcoming(context.Background(), pid, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != future.ID {
		t.Errorf("expected only the future booked appointment, got %v", items)
	}
}

func TestAppointment_Upcoming(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		status string
		start  time.Time
		want   bool
	}{
		{"booked future", StatusBooked, now.Add(time.Hour), true},
		{"booked past", StatusBooked, now.Add(-time.Hour), false},
		{"cancelled future", StatusCancelled, now.Add(time.Hour), false},
		{"completed future", StatusCompleted, now.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Appointment{Status: tt.status, StartAt: tt.start}
			if got := a.Upcoming(now); got != tt.want {
				t.Errorf("Upcoming() = %v, want %v", got, tt.want)
			}
		})
	}
}
