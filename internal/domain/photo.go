package domain

import "time"

// Photo is an image resource associated with a case and optionally with one
// message within that case. The association is set at creation and immutable.
type Photo struct {
	ID        string
	CaseID    string
	MessageID *string
	PhotoURL  string
	CreatedAt time.Time
}
