package inbox

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// ListThread returns a patient's message thread, newest first.
	ListThread(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Message, int, error)
	// MarkRead stamps read_at on every unread message in the thread not
	// sent by the given role, and returns how many were marked.
	MarkRead(ctx context.Context, patientID uuid.UUID, readerRole string) (int, error)
	// UnreadCount counts thread messages not sent by the given role that
	// are still unread.
	UnreadCount(ctx context.Context, patientID uuid.UUID, readerRole string) (int, error)
}
