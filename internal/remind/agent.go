// Package remind runs the device-side reminder loop: it polls the reminder
// store, keeps the countdown engine in sync, rings alarms for due doses, and
// mirrors active reminders into the offline snapshot store.
package remind

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dosewatch/dosewatch/internal/domain/reminder"
	"github.com/dosewatch/dosewatch/internal/remind/alarm"
	"github.com/dosewatch/dosewatch/internal/remind/countdown"
	"github.com/dosewatch/dosewatch/internal/remind/offline"
)

// DefaultPollInterval is how often the agent refreshes from the store.
const DefaultPollInterval = time.Minute

// DefaultSnoozeDelay is how long a snoozed dose stays quiet before it alarms
// again.
const DefaultSnoozeDelay = 5 * time.Minute

// Agent wires the reminder service, countdown engine, alarm dispatcher, and
// offline snapshot store into one run loop.
type Agent struct {
	svc        *reminder.Service
	engine     *countdown.Engine
	dispatcher *alarm.Dispatcher
	snapshots  *offline.Store
	logger     zerolog.Logger

	pollEvery   time.Duration
	snoozeDelay time.Duration
	now         func() time.Time
}

func NewAgent(svc *reminder.Service, engine *countdown.Engine, dispatcher *alarm.Dispatcher, snapshots *offline.Store, logger zerolog.Logger) *Agent {
	return &Agent{
		svc:         svc,
		engine:      engine,
		dispatcher:  dispatcher,
		snapshots:   snapshots,
		logger:      logger,
		pollEvery:   DefaultPollInterval,
		snoozeDelay: DefaultSnoozeDelay,
		now:         time.Now,
	}
}

// SetPollInterval overrides how often the agent refreshes from the store.
func (a *Agent) SetPollInterval(d time.Duration) {
	if d > 0 {
		a.pollEvery = d
	}
}

// SetSnoozeDelay overrides how long a snoozed dose stays quiet.
func (a *Agent) SetSnoozeDelay(d time.Duration) {
	if d > 0 {
		a.snoozeDelay = d
	}
}

// Run drives the agent until the context is cancelled. The countdown engine
// ticks in its own goroutine; this loop handles store polls and due events.
func (a *Agent) Run(ctx context.Context) {
	go a.engine.Run(ctx)

	if err := a.Sync(ctx); err != nil {
		a.logger.Error().Err(err).Msg("initial reminder sync failed")
	}

	ticker := time.NewTicker(a.pollEvery)
	defer ticker.Stop()
	a.logger.Info().Dur("poll_interval", a.pollEvery).Msg("reminder agent started")

	for {
		select {
		case <-ctx.Done():
			a.dispatcher.Shutdown()
			a.logger.Info().Msg("reminder agent stopped")
			return
		case <-ticker.C:
			if err := a.Sync(ctx); err != nil {
				a.logger.Error().Err(err).Msg("reminder sync failed")
			}
		case <-a.svc.Changes():
			if err := a.Sync(ctx); err != nil {
				a.logger.Error().Err(err).Msg("reminder sync failed")
			}
		case ev := <-a.engine.Due():
			a.handleDue(ctx, ev)
		}
	}
}

// Sync refreshes the countdown engine and offline snapshots from the store.
// Reminders that were taken or deleted since the last poll drop out of the
// engine and have any ringing alarm silenced; changed next-dose times reset
// their countdowns and silence the alarm for the superseded dose.
func (a *Agent) Sync(ctx context.Context) error {
	items, err := a.svc.ListAllActive(ctx)
	if err != nil {
		return err
	}

	tracked := make(map[uuid.UUID]time.Time)
	for _, st := range a.engine.Snapshot() {
		tracked[st.ReminderID] = st.NextDoseAt
	}

	seen := make(map[uuid.UUID]struct{}, len(items))
	snaps := make([]offline.Snapshot, 0, len(items))
	for _, r := range items {
		if r.NextDoseAt == nil {
			continue
		}
		seen[r.ID] = struct{}{}
		if was, ok := tracked[r.ID]; ok && !was.Equal(*r.NextDoseAt) {
			a.dispatcher.Acknowledge(r.ID)
		}
		a.engine.Set(r.ID, *r.NextDoseAt)
		snaps = append(snaps, offline.Snapshot{
			ReminderID:     r.ID,
			MedicationName: r.MedicationName,
			DoseText:       r.DoseText,
			NextDoseAt:     *r.NextDoseAt,
			Active:         true,
			SyncedAt:       a.now().UTC(),
		})
	}

	for id := range tracked {
		if _, ok := seen[id]; !ok {
			a.engine.Remove(id)
			a.dispatcher.Acknowledge(id)
		}
	}

	if a.snapshots != nil {
		if err := a.snapshots.Replace(snaps); err != nil {
			a.logger.Warn().Err(err).Msg("offline snapshot sync failed")
		}
	}

	a.logger.Debug().Int("active", len(items)).Msg("reminder sync complete")
	return nil
}

// handleDue rings the alarm for a due countdown event.
func (a *Agent) handleDue(ctx context.Context, ev countdown.DueEvent) {
	r, err := a.svc.Get(ctx, ev.ReminderID)
	if err != nil {
		if errors.Is(err, reminder.ErrNotFound) {
			a.engine.Remove(ev.ReminderID)
			return
		}
		a.logger.Error().Err(err).
			Str("reminder_id", ev.ReminderID.String()).
			Msg("load due reminder")
		return
	}

	// The reminder may have advanced between the tick and this lookup;
	// only ring when the stored dose still matches the event.
	if !r.Active || r.NextDoseAt == nil || !r.NextDoseAt.Equal(ev.NextDoseAt) {
		return
	}

	a.dispatcher.Trigger(ctx, alarm.Alarm{
		ReminderID:     r.ID,
		NextDoseAt:     *r.NextDoseAt,
		MedicationName: r.MedicationName,
		DoseText:       r.DoseText,
	})
}

// Acknowledge records a taken dose and silences its alarm. The engine picks
// up the new dose time immediately rather than waiting for the next poll.
func (a *Agent) Acknowledge(ctx context.Context, id uuid.UUID) (*reminder.Reminder, error) {
	r, err := a.svc.MarkTaken(ctx, id)
	if err != nil {
		return nil, err
	}
	a.dispatcher.Acknowledge(id)
	if r.NextDoseAt != nil {
		a.engine.Set(id, *r.NextDoseAt)
	} else {
		a.engine.Remove(id)
	}
	return r, nil
}

// Snooze silences the current alarm without recording a dose and re-arms the
// countdown after a short delay, so the same dose rings again until it is
// actually acknowledged.
func (a *Agent) Snooze(id uuid.UUID) bool {
	silenced := a.dispatcher.Snooze(id)
	a.engine.Snooze(id, a.snoozeDelay)
	return silenced
}
