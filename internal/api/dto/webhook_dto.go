package dto

// InboundEventRequest is the automation webhook body.
type InboundEventRequest struct {
	Event          string                 `json:"event"`
	CaseID         string                 `json:"case_id"`
	Message        *InboundMessagePayload `json:"message"`
	StatusUpdate   *string                `json:"status_update"`
	IdempotencyKey string                 `json:"idempotency_key"`
}

// InboundMessagePayload carries the expert message fields.
type InboundMessagePayload struct {
	Content  string  `json:"content"`
	ExpertID *string `json:"expert_id"`
}
