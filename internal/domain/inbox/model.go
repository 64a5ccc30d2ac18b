package inbox

import (
	"time"

	"github.com/google/uuid"
)

// Message maps to the messages table: one entry in the thread between a
// patient and their care team. SenderRole records which side wrote it.
type Message struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	SenderUserID string     `db:"sender_user_id" json:"sender_user_id"`
	SenderRole   string     `db:"sender_role" json:"sender_role"`
	Subject      *string    `db:"subject" json:"subject,omitempty"`
	Body         string     `db:"body" json:"body"`
	ReadAt       *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Read reports whether the message has been read by the other side.
func (m *Message) Read() bool { return m.ReadAt != nil }
