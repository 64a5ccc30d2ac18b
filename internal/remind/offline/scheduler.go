package offline

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dosewatch/dosewatch/internal/platform/notification"
)

// defaultWakeSchedule is the cron spec for the background sweep when none is
// configured.
const defaultWakeSchedule = "@every 1m"

// Scheduler wakes periodically and notifies for snapshots whose dose is due.
// When the host cannot schedule periodic work the scheduler enters degraded
// mode: it logs the condition once and stays inert, but never fails the
// process.
type Scheduler struct {
	store    *Store
	notes    *notification.Manager
	schedule string
	logger   zerolog.Logger
	now      func() time.Time
	cron     *cron.Cron
	degraded bool
}

// NewScheduler builds a Scheduler sweeping on the given cron schedule; empty
// means every minute.
func NewScheduler(store *Store, notes *notification.Manager, schedule string, logger zerolog.Logger) *Scheduler {
	if schedule == "" {
		schedule = defaultWakeSchedule
	}
	return &Scheduler{
		store:    store,
		notes:    notes,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
		cron:     cron.New(),
	}
}

// Start registers the periodic sweep and begins running it. Scheduling
// failure is downgraded to a warning.
func (s *Scheduler) Start(ctx context.Context) {
	_, err := s.cron.AddFunc(s.schedule, func() { s.Sweep(ctx) })
	if err != nil {
		s.degraded = true
		s.logger.Warn().Err(err).Str("schedule", s.schedule).
			Msg("periodic background wake unavailable, offline reminders degraded")
		return
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("offline scheduler started")
}

// Stop halts the periodic sweep and waits for a running one to finish.
func (s *Scheduler) Stop() {
	if s.degraded {
		return
	}
	<-s.cron.Stop().Done()
}

// Degraded reports whether periodic scheduling could not be set up.
func (s *Scheduler) Degraded() bool {
	return s.degraded
}

// Sweep notifies for every active snapshot whose dose time has passed. Each
// (reminder, dose time) pair is notified at most once, enforced by the
// store's delivery markers, so overlapping sweeps and restarts stay quiet.
func (s *Scheduler) Sweep(ctx context.Context) {
	snaps, err := s.store.List()
	if err != nil {
		s.logger.Error().Err(err).Msg("list snapshots")
		return
	}

	now := s.now()
	for _, snap := range snaps {
		if !snap.Active || snap.NextDoseAt.After(now) {
			continue
		}
		first, err := s.store.MarkNotified(snap.ReminderID, snap.NextDoseAt)
		if err != nil {
			s.logger.Error().Err(err).
				Str("reminder_id", snap.ReminderID.String()).
				Msg("record delivery marker")
			continue
		}
		if !first {
			continue
		}

		templateID := "dose-due"
		data := map[string]string{
			"medication": snap.MedicationName,
			"dose":       snap.DoseText,
		}
		if now.Sub(snap.NextDoseAt) > time.Hour {
			templateID = "dose-overdue"
			data["due_time"] = snap.NextDoseAt.Local().Format("15:04")
		}

		_, err = s.notes.SendFromTemplate(ctx, templateID, data,
			snap.ReminderID.String(),
			notification.ActionAcknowledge, notification.ActionSnooze)
		if err != nil {
			// Transient failure: release the marker so the next sweep
			// retries this dose.
			if clearErr := s.store.ClearNotified(snap.ReminderID, snap.NextDoseAt); clearErr != nil {
				s.logger.Error().Err(clearErr).
					Str("reminder_id", snap.ReminderID.String()).
					Msg("clear delivery marker")
			}
			s.logger.Warn().Err(err).
				Str("reminder_id", snap.ReminderID.String()).
				Msg("offline dose notification failed, will retry")
			continue
		}
		s.logger.Debug().
			Str("reminder_id", snap.ReminderID.String()).
			Time("due_at", snap.NextDoseAt).
			Msg("offline dose notified")
	}
}
