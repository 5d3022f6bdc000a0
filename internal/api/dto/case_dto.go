package dto

import (
	"time"

	"github.com/fixmypidge/case-service/internal/domain"
)

// CreateCaseRequest payload.
type CreateCaseRequest struct {
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Address     *string  `json:"address"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Content string `json:"content"`
}

// CaseResponse is the flat case shape.
type CaseResponse struct {
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

// CaseDetailResponse nests photos and the message thread.
type CaseDetailResponse struct {
	CaseResponse
	Photos   []PhotoResponse   `json:"photos"`
	Messages []MessageResponse `json:"messages"`
}

// MessageResponse represents one thread message with its photos.
type MessageResponse struct {
	ID         string            `json:"id"`
	CaseID     string            `json:"case_id"`
	Content    string            `json:"content"`
	SenderKind domain.SenderKind `json:"sender_kind"`
	SenderID   *string           `json:"sender_id"`
	Photos     []PhotoResponse   `json:"photos"`
	CreatedAt  time.Time         `json:"created_at"`
}

// PhotoResponse metadata.
type PhotoResponse struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"case_id"`
	MessageID *string   `json:"message_id"`
	PhotoURL  string    `json:"photo_url"`
	CreatedAt time.Time `json:"created_at"`
}

// FromCase maps a domain case.
func FromCase(c *domain.Case) CaseResponse {
	return CaseResponse{
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

// FromCaseDetail maps a nested case.
func FromCaseDetail(detail *domain.CaseDetail) CaseDetailResponse {
	resp := CaseDetailResponse{
		CaseResponse: FromCase(&detail.Case),
		Photos:       make([]PhotoResponse, 0, len(detail.Photos)),
		Messages:     make([]MessageResponse, 0, len(detail.Messages)),
	}
	for i := range detail.Photos {
		resp.Photos = append(resp.Photos, FromPhoto(&detail.Photos[i]))
	}
	for i := range detail.Messages {
		resp.Messages = append(resp.Messages, FromMessageDetail(&detail.Messages[i]))
	}
	return resp
}

// FromMessageDetail maps a message with photos.
func FromMessageDetail(md *domain.MessageDetail) MessageResponse {
	resp := MessageResponse{
		ID:         md.ID,
		CaseID:     md.CaseID,
		Content:    md.Content,
		SenderKind: md.SenderKind,
		SenderID:   md.SenderID,
		Photos:     make([]PhotoResponse, 0, len(md.Photos)),
		CreatedAt:  md.CreatedAt,
	}
	for i := range md.Photos {
		resp.Photos = append(resp.Photos, FromPhoto(&md.Photos[i]))
	}
	return resp
}

// FromMessage maps a bare message.
func FromMessage(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		CaseID:     m.CaseID,
		Content:    m.Content,
		SenderKind: m.SenderKind,
		SenderID:   m.SenderID,
		Photos:     []PhotoResponse{},
		CreatedAt:  m.CreatedAt,
	}
}

// FromPhoto maps a photo.
func FromPhoto(p *domain.Photo) PhotoResponse {
	return PhotoResponse{
		ID:        p.ID,
		CaseID:    p.CaseID,
		MessageID: p.MessageID,
		PhotoURL:  p.PhotoURL,
		CreatedAt: p.CreatedAt,
	}
}
