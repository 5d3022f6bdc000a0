package domain

import "time"

// SenderKind indicates who authored a message.
type SenderKind string

const (
	SenderCitizen SenderKind = "citizen"
	SenderExpert  SenderKind = "expert"
)

// Message is one turn in a case's conversation thread. Messages are
// append-only: once created they are never edited or removed.
type Message struct {
	ID         string
	CaseID     string
	Content    string
	SenderKind SenderKind
	SenderID   *string
	CreatedAt  time.Time
}

// MessageDetail is a message with the photos attached to it.
type MessageDetail struct {
	Message
	Photos []Photo
}
