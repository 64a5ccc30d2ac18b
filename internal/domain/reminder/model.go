package reminder

import (
	"time"

	"github.com/google/uuid"
)

// Reminder maps to the reminders table. NextDoseAt is the absolute wall-clock
// time of the next dose; countdown displays and due checks are always derived
// from it, never from a stored remaining-seconds value. It is null once the
// course completes.
type Reminder struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	MedicationID    *uuid.UUID `db:"medication_id" json:"medication_id,omitempty"`
	MedicationName  string     `db:"medication_name" json:"medication_name"`
	DoseText        string     `db:"dose_text" json:"dose_text"`
	IntervalSeconds int        `db:"interval_seconds" json:"interval_seconds"`
	TotalDoses      int        `db:"total_doses" json:"total_doses"`
	CompletedDoses  int        `db:"completed_doses" json:"completed_doses"`
	NextDoseAt      *time.Time `db:"next_dose_at" json:"next_dose_at,omitempty"`
	Active          bool       `db:"active" json:"active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"-"`
}

// Interval returns the dose interval as a duration.
func (r *Reminder) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

// Completed reports whether every dose in the course has been taken.
func (r *Reminder) Completed() bool {
	return r.TotalDoses > 0 && r.CompletedDoses >= r.TotalDoses
}

// SecondsUntilDue returns the whole seconds remaining until the next dose at
// the given instant. Negative values mean the dose is overdue. Returns 0 and
// false when no dose is scheduled.
func (r *Reminder) SecondsUntilDue(now time.Time) (int64, bool) {
	if r.NextDoseAt == nil {
		return 0, false
	}
	return int64(r.NextDoseAt.Sub(now) / time.Second), true
}

// Due reports whether the next dose time has been reached.
func (r *Reminder) Due(now time.Time) bool {
	return r.NextDoseAt != nil && !r.NextDoseAt.After(now)
}

// DoseEvent maps to the dose_history table. ScheduledAt is the dose time that
// was on the reminder when it was acknowledged; TakenAt is when the patient
// actually acknowledged it.
type DoseEvent struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ReminderID  uuid.UUID `db:"reminder_id" json:"reminder_id"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	TakenAt     time.Time `db:"taken_at" json:"taken_at"`
}
