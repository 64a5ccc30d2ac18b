// Package alarm turns due-dose events into the device-facing alarm sequence:
// vibration, an actionable notification, and a repeating audible tone. Each
// alarm is keyed by reminder and dose time so a single due transition rings
// exactly once, no matter how often the event is redelivered.
package alarm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dosewatch/dosewatch/internal/platform/notification"
	"github.com/dosewatch/dosewatch/internal/platform/tone"
)

// Sounder plays raw PCM. *tone.Player satisfies it; tests substitute a
// recorder.
type Sounder interface {
	Play(pcm []byte) error
	Stop()
}

// Config controls the ring sequence.
type Config struct {
	// ToneProfile names a built-in tone profile.
	ToneProfile string
	// CustomToneWAV optionally points at a WAV file that replaces the
	// profile tone.
	CustomToneWAV string
	// RepeatEvery is the interval between tone repeats.
	RepeatEvery time.Duration
	// VibrateEveryN triggers vibration on every Nth tone repeat.
	VibrateEveryN int
	// RingDuration bounds how long an unacknowledged alarm rings.
	RingDuration time.Duration
	// VibratePattern is the buzz/pause pattern passed to the vibrator.
	VibratePattern []time.Duration
}

func DefaultConfig() Config {
	return Config{
		ToneProfile:   tone.DefaultProfile,
		RepeatEvery:   3 * time.Second,
		VibrateEveryN: 3,
		RingDuration:  30 * time.Second,
		VibratePattern: []time.Duration{
			400 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond,
		},
	}
}

// Alarm describes one due dose to ring for.
type Alarm struct {
	ReminderID     uuid.UUID
	NextDoseAt     time.Time
	MedicationName string
	DoseText       string
}

type session struct {
	cancel chan struct{}
	done   chan struct{}
	key    string
}

// Dispatcher owns the alarm lifecycle for all reminders. An alarm is armed
// when triggered and fired once its ring sequence has started; triggering the
// same (reminder, dose time) pair again is a no-op.
type Dispatcher struct {
	cfg     Config
	pcm     []byte
	sounder Sounder
	vib     notification.Vibrator
	notes   *notification.Manager
	logger  zerolog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	fired    map[string]time.Time
}

// NewDispatcher builds a Dispatcher, rendering the configured tone up front.
// A custom WAV that fails to load falls back to the built-in profile.
func NewDispatcher(cfg Config, sounder Sounder, vib notification.Vibrator, notes *notification.Manager, logger zerolog.Logger) (*Dispatcher, error) {
	if cfg.RepeatEvery <= 0 {
		cfg.RepeatEvery = 3 * time.Second
	}
	if cfg.VibrateEveryN <= 0 {
		cfg.VibrateEveryN = 3
	}
	if cfg.RingDuration <= 0 {
		cfg.RingDuration = 30 * time.Second
	}
	if cfg.ToneProfile == "" {
		cfg.ToneProfile = tone.DefaultProfile
	}

	var pcm []byte
	if cfg.CustomToneWAV != "" {
		var err error
		pcm, err = tone.LoadCustomPCM(cfg.CustomToneWAV)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.CustomToneWAV).
				Msg("custom tone unavailable, using built-in profile")
			pcm = nil
		}
	}
	if pcm == nil {
		profile, err := tone.GetProfile(cfg.ToneProfile)
		if err != nil {
			return nil, err
		}
		pcm = profile.Render()
	}

	return &Dispatcher{
		cfg:      cfg,
		pcm:      pcm,
		sounder:  sounder,
		vib:      vib,
		notes:    notes,
		logger:   logger,
		sessions: make(map[uuid.UUID]*session),
		fired:    make(map[string]time.Time),
	}, nil
}

func alarmKey(id uuid.UUID, doseAt time.Time) string {
	return id.String() + "|" + doseAt.UTC().Format(time.RFC3339)
}

// Trigger starts the ring sequence for a due dose. It returns false when the
// same dose has already fired. A newer dose time for the same reminder
// supersedes any alarm still ringing for an earlier one.
func (d *Dispatcher) Trigger(ctx context.Context, a Alarm) bool {
	key := alarmKey(a.ReminderID, a.NextDoseAt)

	d.mu.Lock()
	if _, dup := d.fired[key]; dup {
		d.mu.Unlock()
		return false
	}
	d.fired[key] = time.Now()
	d.pruneFiredLocked()

	prev := d.sessions[a.ReminderID]
	s := &session{cancel: make(chan struct{}), done: make(chan struct{}), key: key}
	d.sessions[a.ReminderID] = s
	d.mu.Unlock()

	if prev != nil {
		close(prev.cancel)
		<-prev.done
	}

	go d.ring(ctx, a, s)
	return true
}

// Acknowledge stops the alarm for a reminder. It reports whether an alarm was
// ringing.
func (d *Dispatcher) Acknowledge(id uuid.UUID) bool {
	d.mu.Lock()
	s := d.sessions[id]
	delete(d.sessions, id)
	d.mu.Unlock()
	if s == nil {
		return false
	}
	close(s.cancel)
	<-s.done
	return true
}

// Snooze stops the alarm like Acknowledge but also clears the fired marker
// for the ringing dose, so the same (reminder, dose time) pair may ring again
// once the countdown re-arms. It reports whether an alarm was ringing.
func (d *Dispatcher) Snooze(id uuid.UUID) bool {
	d.mu.Lock()
	s := d.sessions[id]
	delete(d.sessions, id)
	if s != nil {
		delete(d.fired, s.key)
	}
	d.mu.Unlock()
	if s == nil {
		return false
	}
	close(s.cancel)
	<-s.done
	return true
}

// Ringing reports whether the reminder currently has an active alarm.
func (d *Dispatcher) Ringing(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.sessions[id]
	return ok
}

// Shutdown stops every active alarm and waits for their goroutines.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	sessions := d.sessions
	d.sessions = make(map[uuid.UUID]*session)
	d.mu.Unlock()
	for _, s := range sessions {
		close(s.cancel)
		<-s.done
	}
}

// ring runs the alarm sequence: vibrate, notify, then repeat the tone until
// acknowledged or the ring duration elapses. Cleanup always runs, whichever
// way the sequence ends.
func (d *Dispatcher) ring(ctx context.Context, a Alarm, s *session) {
	defer func() {
		d.sounder.Stop()
		d.mu.Lock()
		if d.sessions[a.ReminderID] == s {
			delete(d.sessions, a.ReminderID)
		}
		d.mu.Unlock()
		close(s.done)
	}()

	d.vibrate(ctx, a)
	d.notify(ctx, a)
	d.playTone(a)

	ticker := time.NewTicker(d.cfg.RepeatEvery)
	defer ticker.Stop()
	deadline := time.NewTimer(d.cfg.RingDuration)
	defer deadline.Stop()

	repeats := 1
	for {
		select {
		case <-s.cancel:
			return
		case <-ctx.Done():
			return
		case <-deadline.C:
			d.logger.Debug().
				Str("reminder_id", a.ReminderID.String()).
				Msg("alarm ring duration elapsed")
			return
		case <-ticker.C:
			repeats++
			d.playTone(a)
			if repeats%d.cfg.VibrateEveryN == 0 {
				d.vibrate(ctx, a)
			}
		}
	}
}

func (d *Dispatcher) playTone(a Alarm) {
	if err := d.sounder.Play(d.pcm); err != nil {
		d.logger.Warn().Err(err).
			Str("reminder_id", a.ReminderID.String()).
			Msg("tone playback failed")
	}
}

// vibrate is fire-and-forget: unsupported hardware or failures are logged
// and never interrupt the sequence.
func (d *Dispatcher) vibrate(ctx context.Context, a Alarm) {
	if d.vib == nil || !d.vib.Supported() {
		return
	}
	go func() {
		if err := d.vib.Vibrate(ctx, d.cfg.VibratePattern); err != nil {
			d.logger.Warn().Err(err).
				Str("reminder_id", a.ReminderID.String()).
				Msg("vibration failed")
		}
	}()
}

func (d *Dispatcher) notify(ctx context.Context, a Alarm) {
	if d.notes == nil {
		return
	}
	_, err := d.notes.SendFromTemplate(ctx, "dose-due", map[string]string{
		"medication": a.MedicationName,
		"dose":       a.DoseText,
	}, a.ReminderID.String(),
		notification.ActionAcknowledge, notification.ActionSnooze)
	if err != nil {
		d.logger.Warn().Err(err).
			Str("reminder_id", a.ReminderID.String()).
			Msg("dose notification failed")
	}
}

// pruneFiredLocked drops idempotency records older than a day so the map does
// not grow unbounded. Callers hold d.mu.
func (d *Dispatcher) pruneFiredLocked() {
	if len(d.fired) < 1024 {
		return
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	for k, at := range d.fired {
		if at.Before(cutoff) {
			delete(d.fired, k)
		}
	}
}
