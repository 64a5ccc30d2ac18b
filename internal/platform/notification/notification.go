// Package notification provides the device notification and vibration
// channels used when a dose comes due, with template rendering, in-memory
// storage, and retry logic. Channels are capability-checked interfaces so
// hosts without a notification surface or vibration motor degrade cleanly.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Notification
// ---------------------------------------------------------------------------

// Standard actions attached to dose notifications.
const (
	ActionAcknowledge = "acknowledge"
	ActionSnooze      = "snooze"
)

// Notification represents a single outbound device notification.
type Notification struct {
	ID           string            `json:"id"`
	ReminderID   string            `json:"reminder_id,omitempty"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	Actions      []string          `json:"actions,omitempty"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Priority     string            `json:"priority"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// Channel Interfaces
// ---------------------------------------------------------------------------

// Notifier is the interface for raising device notifications. Implementations
// report whether the user has granted notification permission; callers skip
// silently when permission is missing.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
	PermissionGranted() bool
}

// Vibrator is the interface for triggering device vibration. Vibration is
// fire-and-forget: callers log failures but never treat them as fatal.
type Vibrator interface {
	Vibrate(ctx context.Context, pattern []time.Duration) error
	Supported() bool
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable notification template.
type Template struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:    "dose-due",
			Name:  "Dose Due",
			Title: "Time for {{medication}}",
			Body:  "Take {{dose}} of {{medication}} now.",
		},
		{
			ID:    "dose-overdue",
			Name:  "Dose Overdue",
			Title: "Missed dose: {{medication}}",
			Body:  "Your {{dose}} of {{medication}} was due at {{due_time}}.",
		},
		{
			ID:    "course-complete",
			Name:  "Course Complete",
			Title: "{{medication}} course finished",
			Body:  "You have taken all {{total_doses}} doses of {{medication}}.",
		},
		{
			ID:    "appointment-reminder",
			Name:  "Appointment Reminder",
			Title: "Appointment on {{date}}",
			Body:  "You have an appointment with {{clinician}} on {{date}} at {{time}}.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (title, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	title = t.Title
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		title = strings.ReplaceAll(title, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return title, body, nil
}

// ---------------------------------------------------------------------------
// Log-backed channels (headless hosts)
// ---------------------------------------------------------------------------

// LogNotifier writes notifications to the structured log. It is the fallback
// channel on hosts without a native notification surface.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (l *LogNotifier) Notify(_ context.Context, n *Notification) error {
	l.Logger.Info().
		Str("notification_id", n.ID).
		Str("reminder_id", n.ReminderID).
		Str("title", n.Title).
		Strs("actions", n.Actions).
		Msg("notification")
	return nil
}

func (l *LogNotifier) PermissionGranted() bool { return true }

// NoopVibrator reports vibration as unsupported.
type NoopVibrator struct{}

func (NoopVibrator) Vibrate(context.Context, []time.Duration) error { return nil }
func (NoopVibrator) Supported() bool                                { return false }

// ---------------------------------------------------------------------------
// Mock channels (test doubles)
// ---------------------------------------------------------------------------

// NotifyCall records a single call to Notify.
type NotifyCall struct {
	ReminderID string
	Title      string
	Body       string
	Actions    []string
}

// MockNotifier is a test double for Notifier.
type MockNotifier struct {
	mu         sync.Mutex
	calls      []NotifyCall
	Denied     bool
	ShouldFail bool
	FailError  string
}

// Notify records the call and optionally returns an error.
func (m *MockNotifier) Notify(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, NotifyCall{
		ReminderID: n.ReminderID,
		Title:      n.Title,
		Body:       n.Body,
		Actions:    n.Actions,
	})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

func (m *MockNotifier) PermissionGranted() bool { return !m.Denied }

// Calls returns a copy of recorded notify calls.
func (m *MockNotifier) Calls() []NotifyCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NotifyCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockVibrator is a test double for Vibrator.
type MockVibrator struct {
	mu          sync.Mutex
	calls       [][]time.Duration
	Unsupported bool
	ShouldFail  bool
}

// Vibrate records the call and optionally returns an error.
func (m *MockVibrator) Vibrate(_ context.Context, pattern []time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, pattern)
	if m.ShouldFail {
		return errors.New("vibration hardware failure")
	}
	return nil
}

func (m *MockVibrator) Supported() bool { return !m.Unsupported }

// Calls returns a copy of recorded vibration patterns.
func (m *MockVibrator) Calls() [][]time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]time.Duration, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Notification Manager
// ---------------------------------------------------------------------------

// Notification statuses.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped" // permission denied, dropped silently
)

// ActionHandler receives the user's response to a notification action
// (acknowledge, snooze).
type ActionHandler func(ctx context.Context, reminderID, action string)

// Manager orchestrates sending, storage, and retrieval of notifications.
type Manager struct {
	notifier      Notifier
	templates     *TemplateEngine
	logger        zerolog.Logger
	mu            sync.RWMutex
	notifications map[string]*Notification
	onAction      ActionHandler
}

// NewManager constructs a Manager.
func NewManager(notifier Notifier, tpl *TemplateEngine, logger zerolog.Logger) *Manager {
	return &Manager{
		notifier:      notifier,
		templates:     tpl,
		logger:        logger,
		notifications: make(map[string]*Notification),
	}
}

// SetActionHandler registers the callback invoked when a user responds to a
// notification action.
func (m *Manager) SetActionHandler(h ActionHandler) {
	m.mu.Lock()
	m.onAction = h
	m.mu.Unlock()
}

// Dispatch routes a user's action on a notification to the registered
// handler. Notifier backends call it when an action button is tapped; without
// a handler the action is logged and dropped.
func (m *Manager) Dispatch(ctx context.Context, reminderID, action string) {
	m.mu.RLock()
	h := m.onAction
	m.mu.RUnlock()
	if h == nil {
		m.logger.Debug().
			Str("reminder_id", reminderID).
			Str("action", action).
			Msg("notification action with no handler registered")
		return
	}
	h(ctx, reminderID, action)
}

// Send dispatches a notification, assigns an ID and timestamps, and persists
// the result in-memory. When notification permission is denied the
// notification is recorded as skipped and no error is returned.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Priority == "" {
		n.Priority = "normal"
	}
	n.CreatedAt = time.Now().UTC()

	var sendErr error
	if !m.notifier.PermissionGranted() {
		n.Status = StatusSkipped
		m.logger.Debug().Str("notification_id", n.ID).Msg("notification permission denied, skipping")
	} else if sendErr = m.notifier.Notify(ctx, n); sendErr != nil {
		n.Status = StatusFailed
		n.Error = sendErr.Error()
	} else {
		n.Status = StatusSent
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	m.mu.Lock()
	m.notifications[n.ID] = n
	m.mu.Unlock()

	return sendErr
}

// SendFromTemplate renders a template and sends the resulting notification.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, reminderID string, actions ...string) (*Notification, error) {
	title, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notification{
		ReminderID:   reminderID,
		Title:        title,
		Body:         body,
		Actions:      actions,
		TemplateID:   templateID,
		TemplateData: data,
	}

	if err := m.Send(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

// Get retrieves a notification by ID.
func (m *Manager) Get(id string) (*Notification, error) {
	m.mu.RLock()
	n, ok := m.notifications[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return n, nil
}

// ListByReminder returns notifications for a given reminder, up to limit.
func (m *Manager) ListByReminder(reminderID string, limit int) []*Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Notification
	for _, n := range m.notifications {
		if n.ReminderID == reminderID {
			result = append(result, n)
			if len(result) >= limit {
				break
			}
		}
	}
	return result
}

// Retry re-sends a failed notification. Returns an error if the notification
// is not in failed status.
func (m *Manager) Retry(ctx context.Context, id string) error {
	m.mu.RLock()
	n, ok := m.notifications[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("notification %q not found", id)
	}
	if n.Status != StatusFailed {
		return fmt.Errorf("notification %q is not in failed status (current: %s)", id, n.Status)
	}

	sendErr := m.notifier.Notify(ctx, n)

	m.mu.Lock()
	if sendErr != nil {
		n.Status = StatusFailed
		n.Error = sendErr.Error()
	} else {
		n.Status = StatusSent
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
		n.Error = ""
	}
	m.mu.Unlock()

	return sendErr
}

// Stats returns counts of notifications grouped by status.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, n := range m.notifications {
		stats[n.Status]++
	}
	return stats
}
