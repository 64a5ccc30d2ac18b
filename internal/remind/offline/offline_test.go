package offline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dosewatch/dosewatch/internal/platform/notification"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGetDelete(t *testing.T) {
	s := openTestStore(t)
	snap := Snapshot{
		ReminderID:     uuid.New(),
		MedicationName: "Metformin",
		DoseText:       "500mg",
		NextDoseAt:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Active:         true,
		SyncedAt:       time.Now().UTC(),
	}
	if err := s.Put(snap); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(snap.ReminderID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MedicationName != "Metformin" || !got.NextDoseAt.Equal(snap.NextDoseAt) {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if err := s.Delete(snap.ReminderID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(snap.ReminderID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_Replace(t *testing.T) {
	s := openTestStore(t)
	old := Snapshot{ReminderID: uuid.New(), MedicationName: "Old", Active: true}
	if err := s.Put(old); err != nil {
		t.Fatal(err)
	}

	fresh := []Snapshot{
		{ReminderID: uuid.New(), MedicationName: "Metformin", Active: true},
		{ReminderID: uuid.New(), MedicationName: "Lisinopril", Active: true},
	}
	if err := s.Replace(fresh); err != nil {
		t.Fatalf("replace: %v", err)
	}

	snaps, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots after replace, got %d", len(snaps))
	}
	if _, err := s.Get(old.ReminderID); !errors.Is(err, ErrNotFound) {
		t.Error("expected stale snapshot to be gone after replace")
	}
}

func TestStore_MarkNotifiedIdempotent(t *testing.T) {
	s := openTestStore(t)
	id := uuid.New()
	due := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	first, err := s.MarkNotified(id, due)
	if err != nil {
		t.Fatal(err)
	}
	if !first {
		t.Fatal("expected first marker to report true")
	}

	again, err := s.MarkNotified(id, due)
	if err != nil {
		t.Fatal(err)
	}
	if again {
		t.Error("expected duplicate marker to report false")
	}

	// A different dose time is a fresh delivery.
	next, err := s.MarkNotified(id, due.Add(8*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !next {
		t.Error("expected new dose time to report true")
	}
}

func newTestScheduler(t *testing.T, s *Store, notifier notification.Notifier, now time.Time) *Scheduler {
	t.Helper()
	mgr := notification.NewManager(notifier, notification.NewTemplateEngine(), zerolog.Nop())
	sched := NewScheduler(s, mgr, "", zerolog.Nop())
	sched.now = func() time.Time { return now }
	return sched
}

func TestSweep_NotifiesDueSnapshotsOnce(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	due := Snapshot{ReminderID: uuid.New(), MedicationName: "Metformin", DoseText: "500mg", NextDoseAt: now.Add(-time.Minute), Active: true}
	pending := Snapshot{ReminderID: uuid.New(), MedicationName: "Lisinopril", DoseText: "10mg", NextDoseAt: now.Add(time.Hour), Active: true}
	inactive := Snapshot{ReminderID: uuid.New(), MedicationName: "Aspirin", DoseText: "81mg", NextDoseAt: now.Add(-time.Hour), Active: false}
	for _, snap := range []Snapshot{due, pending, inactive} {
		if err := s.Put(snap); err != nil {
			t.Fatal(err)
		}
	}

	notifier := &notification.MockNotifier{}
	sched := newTestScheduler(t, s, notifier, now)

	sched.Sweep(context.Background())
	calls := notifier.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(calls))
	}
	if calls[0].ReminderID != due.ReminderID.String() {
		t.Errorf("notified wrong reminder %s", calls[0].ReminderID)
	}
	if calls[0].Title != "Time for Metformin" {
		t.Errorf("unexpected title %q", calls[0].Title)
	}
	if len(calls[0].Actions) != 2 {
		t.Errorf("expected acknowledge/snooze actions, got %v", calls[0].Actions)
	}

	// The next sweep finds the delivery marker and stays quiet.
	sched.Sweep(context.Background())
	if got := len(notifier.Calls()); got != 1 {
		t.Errorf("expected no duplicate notification, got %d total", got)
	}
}

func TestSweep_OverdueUsesOverdueTemplate(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{ReminderID: uuid.New(), MedicationName: "Metformin", DoseText: "500mg", NextDoseAt: now.Add(-3 * time.Hour), Active: true}
	if err := s.Put(snap); err != nil {
		t.Fatal(err)
	}

	notifier := &notification.MockNotifier{}
	sched := newTestScheduler(t, s, notifier, now)
	sched.Sweep(context.Background())

	calls := notifier.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(calls))
	}
	if calls[0].Title != "Missed dose: Metformin" {
		t.Errorf("expected overdue template, got title %q", calls[0].Title)
	}
}

func TestSweep_NotificationFailureRetriedNextSweep(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	snap := Snapshot{ReminderID: uuid.New(), MedicationName: "Metformin", DoseText: "500mg", NextDoseAt: now.Add(-time.Minute), Active: true}
	if err := s.Put(snap); err != nil {
		t.Fatal(err)
	}

	notifier := &notification.MockNotifier{ShouldFail: true, FailError: "transport down"}
	sched := newTestScheduler(t, s, notifier, now)

	sched.Sweep(context.Background())
	if got := len(notifier.Calls()); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}

	// The failed send released its delivery marker, so the next sweep
	// retries the same dose.
	notifier.ShouldFail = false
	sched.Sweep(context.Background())
	if got := len(notifier.Calls()); got != 2 {
		t.Fatalf("expected retry after transient failure, got %d calls", got)
	}

	// Once delivered, further sweeps stay quiet.
	sched.Sweep(context.Background())
	if got := len(notifier.Calls()); got != 2 {
		t.Errorf("expected no duplicate after success, got %d calls", got)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := openTestStore(t)
	sched := newTestScheduler(t, s, &notification.MockNotifier{}, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	if sched.Degraded() {
		t.Fatal("expected scheduler to start cleanly")
	}
	sched.Stop()
}

func TestScheduler_ConfiguredSchedule(t *testing.T) {
	s := openTestStore(t)
	mgr := notification.NewManager(&notification.MockNotifier{}, notification.NewTemplateEngine(), zerolog.Nop())

	sched := NewScheduler(s, mgr, "@every 30s", zerolog.Nop())
	if sched.schedule != "@every 30s" {
		t.Errorf("expected configured schedule, got %q", sched.schedule)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	if sched.Degraded() {
		t.Fatal("expected valid schedule to start cleanly")
	}
	sched.Stop()

	if got := NewScheduler(s, mgr, "", zerolog.Nop()).schedule; got != defaultWakeSchedule {
		t.Errorf("expected empty schedule to fall back to default, got %q", got)
	}
}

func TestScheduler_InvalidScheduleDegrades(t *testing.T) {
	s := openTestStore(t)
	mgr := notification.NewManager(&notification.MockNotifier{}, notification.NewTemplateEngine(), zerolog.Nop())
	sched := NewScheduler(s, mgr, "not a cron spec", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	if !sched.Degraded() {
		t.Fatal("expected invalid schedule to enter degraded mode")
	}
	sched.Stop()
}
