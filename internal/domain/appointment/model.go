package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Appointment maps to the appointments table.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	ClinicianUserID string     `db:"clinician_user_id" json:"clinician_user_id"`
	Status          string     `db:"status" json:"status"`
	StartAt         time.Time  `db:"start_at" json:"start_at"`
	EndAt           *time.Time `db:"end_at" json:"end_at,omitempty"`
	Location        *string    `db:"location" json:"location,omitempty"`
	Reason          *string    `db:"reason" json:"reason,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Upcoming reports whether the appointment is still booked and in the future.
func (a *Appointment) Upcoming(now time.Time) bool {
	return a.Status == StatusBooked && a.StartAt.After(now)
}
