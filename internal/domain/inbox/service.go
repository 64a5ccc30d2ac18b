package inbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a message does not exist.
var ErrNotFound = errors.New("message not found")

const maxBodyLength = 4000

type Service struct {
	messages Repository
}

func NewService(messages Repository) *Service {
	return &Service{messages: messages}
}

// Send appends a message to the patient's thread.
func (s *Service) Send(ctx context.Context, m *Message) error {
	if m.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if m.SenderUserID == "" {
		return fmt.Errorf("sender_user_id is required")
	}
	if m.Body == "" {
		return fmt.Errorf("body is required")
	}
	if len(m.Body) > maxBodyLength {
		return fmt.Errorf("body exceeds %d characters", maxBodyLength)
	}
	return s.messages.Create(ctx, m)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return m, nil
}

// Thread returns a patient's message thread, newest first.
func (s *Service) Thread(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	return s.messages.ListThread(ctx, patientID, limit, offset)
}

// MarkRead marks the other side's messages in a thread as read.
func (s *Service) MarkRead(ctx context.Context, patientID uuid.UUID, readerRole string) (int, error) {
	return s.messages.MarkRead(ctx, patientID, readerRole)
}

// UnreadCount counts messages awaiting the reader.
func (s *Service) UnreadCount(ctx context.Context, patientID uuid.UUID, readerRole string) (int, error) {
	return s.messages.UnreadCount(ctx, patientID, readerRole)
}
