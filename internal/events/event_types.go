package events

import (
	"time"

	"github.com/fixmypidge/case-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCaseCreated EventType = "case_created"
	EventMessageSent EventType = "message_sent"
)

// Event represents a domain event emitted when a citizen mutates a case.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	CaseID    string      `json:"case_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// CaseCreatedPayload carries the full case snapshot.
type CaseCreatedPayload struct {
	Case CaseSnapshot `json:"case"`
}

// MessageSentPayload carries the message snapshot.
type MessageSentPayload struct {
	MessageID string          `json:"message_id"`
	Message   MessageSnapshot `json:"message"`
}

// CaseSnapshot mirrors the persisted case row at event time.
type CaseSnapshot struct {
	ID          string               `json:"id"`
	UserID      string               `json:"user_id"`
	Title       string               `json:"title"`
	Description *string              `json:"description"`
	Latitude    *float64             `json:"latitude"`
	Longitude   *float64             `json:"longitude"`
	Address     *string              `json:"address"`
	Status      domain.CaseStatus    `json:"status"`
	Category    *domain.CaseCategory `json:"category"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// MessageSnapshot mirrors the persisted message row at event time.
type MessageSnapshot struct {
	ID         string            `json:"id"`
	CaseID     string            `json:"case_id"`
	Content    string            `json:"content"`
	SenderKind domain.SenderKind `json:"sender_kind"`
	SenderID   *string           `json:"sender_id"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SnapshotCase converts a domain case into its event snapshot.
func SnapshotCase(c *domain.Case) CaseSnapshot {
	return CaseSnapshot{
		ID:          c.ID,
		UserID:      c.UserID,
		Title:       c.Title,
		Description: c.Description,
		Latitude:    c.Latitude,
		Longitude:   c.Longitude,
		Address:     c.Address,
		Status:      c.Status,
		Category:    c.Category,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// SnapshotMessage converts a domain message into its event snapshot.
func SnapshotMessage(m *domain.Message) MessageSnapshot {
	return MessageSnapshot{
		ID:         m.ID,
		CaseID:     m.CaseID,
		Content:    m.Content,
		SenderKind: m.SenderKind,
		SenderID:   m.SenderID,
		CreatedAt:  m.CreatedAt,
	}
}
