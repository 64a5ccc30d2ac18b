// Package countdown tracks the time remaining until each active reminder's
// next dose. Remaining seconds are always derived from the absolute next-dose
// timestamp at read time; the engine never decrements a stored counter, so a
// device sleeping through ticks still reports the correct value on wake.
package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DueEvent is emitted once per (reminder, next dose) pair when the countdown
// reaches zero.
type DueEvent struct {
	ReminderID uuid.UUID
	NextDoseAt time.Time
}

// Status is a read-only view of one tracked reminder.
type Status struct {
	ReminderID       uuid.UUID `json:"reminder_id"`
	NextDoseAt       time.Time `json:"next_dose_at"`
	SecondsRemaining int64     `json:"seconds_remaining"`
	Due              bool      `json:"due"`
}

type entry struct {
	nextDoseAt time.Time
	alarmed    bool
	// rearmAt, when set, clears the alarmed flag once it passes so a
	// snoozed dose fires a fresh due transition.
	rearmAt time.Time
}

// Engine drives the per-second countdown for all tracked reminders on a
// single shared ticker.
type Engine struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry

	due    chan DueEvent
	logger zerolog.Logger
	tick   time.Duration
	now    func() time.Time
}

func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		entries: make(map[uuid.UUID]*entry),
		due:     make(chan DueEvent, 64),
		logger:  logger,
		tick:    time.Second,
		now:     time.Now,
	}
}

// Due returns the channel on which due transitions are delivered.
func (e *Engine) Due() <-chan DueEvent {
	return e.due
}

// Set starts or updates tracking for a reminder. A changed next-dose
// timestamp resets the countdown and clears the alarmed flag, so the new
// dose time gets its own due transition.
func (e *Engine) Set(id uuid.UUID, nextDoseAt time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ent, ok := e.entries[id]; ok {
		if !ent.nextDoseAt.Equal(nextDoseAt) {
			ent.nextDoseAt = nextDoseAt
			ent.alarmed = false
			ent.rearmAt = time.Time{}
		}
		return
	}
	e.entries[id] = &entry{nextDoseAt: nextDoseAt}
}

// Snooze suppresses the due state for a reminder and schedules it to re-arm
// after d. The same next-dose timestamp then fires a fresh due transition,
// unlike the normal at-most-once behavior. Reports false when the reminder is
// not tracked.
func (e *Engine) Snooze(id uuid.UUID, d time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[id]
	if !ok {
		return false
	}
	ent.alarmed = true
	ent.rearmAt = e.now().Add(d)
	return true
}

// Remove stops tracking a reminder.
func (e *Engine) Remove(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.entries, id)
}

// Remaining reports the seconds until the reminder's next dose, negative when
// overdue. The second return is false when the reminder is not tracked.
func (e *Engine) Remaining(id uuid.UUID) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[id]
	if !ok {
		return 0, false
	}
	return remainingSeconds(ent.nextDoseAt, e.now()), true
}

// Snapshot returns the current status of every tracked reminder.
func (e *Engine) Snapshot() []Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	out := make([]Status, 0, len(e.entries))
	for id, ent := range e.entries {
		rem := remainingSeconds(ent.nextDoseAt, now)
		out = append(out, Status{
			ReminderID:       id,
			NextDoseAt:       ent.nextDoseAt,
			SecondsRemaining: rem,
			Due:              rem <= 0,
		})
	}
	return out
}

// Run ticks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	e.logger.Info().Dur("tick", e.tick).Msg("countdown engine started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("countdown engine stopped")
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

// sweep emits a DueEvent for every entry whose countdown has reached zero and
// has not yet alarmed for its current next-dose timestamp. A timestamp
// already in the past when first tracked fires on the first sweep, exactly
// once.
func (e *Engine) sweep() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	for id, ent := range e.entries {
		if ent.alarmed {
			if ent.rearmAt.IsZero() || now.Before(ent.rearmAt) {
				continue
			}
			ent.alarmed = false
			ent.rearmAt = time.Time{}
		}
		if remainingSeconds(ent.nextDoseAt, now) > 0 {
			continue
		}
		select {
		case e.due <- DueEvent{ReminderID: id, NextDoseAt: ent.nextDoseAt}:
			ent.alarmed = true
		default:
			// Consumer is behind; leave alarmed unset so the next
			// sweep retries the delivery.
			e.logger.Warn().Str("reminder_id", id.String()).Msg("due channel full, deferring")
		}
	}
}

func remainingSeconds(nextDoseAt, now time.Time) int64 {
	return int64(nextDoseAt.Sub(now) / time.Second)
}
