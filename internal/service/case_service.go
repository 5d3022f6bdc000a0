package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fixmypidge/case-service/internal/domain"
	"github.com/fixmypidge/case-service/internal/events"
	"github.com/fixmypidge/case-service/internal/repository"
	apperrors "github.com/fixmypidge/case-service/pkg/util/errorutil"
)

// CaseService coordinates citizen-facing case workflows. Every mutation
// commits locally first; outbound notification happens through the event
// dispatcher and never affects the outcome of the mutation.
type CaseService struct {
	cases      repository.CaseRepository
	messages   repository.MessageRepository
	photos     repository.PhotoRepository
	dispatcher events.Dispatcher
	geocoder   Geocoder
	media      MediaStorage
}

// CaseDependencies bundles collaborators for the case service.
type CaseDependencies struct {
	CaseRepo    repository.CaseRepository
	MessageRepo repository.MessageRepository
	PhotoRepo   repository.PhotoRepository
	Dispatcher  events.Dispatcher
	Geocoder    Geocoder
	Media       MediaStorage
}

// CaseCreateInput describes case creation payload.
type CaseCreateInput struct {
	Title       string
	Description *string
	Category    *domain.CaseCategory
	Latitude    *float64
	Longitude   *float64
	Address     *string
}

// NewCaseService constructs the service.
func NewCaseService(deps CaseDependencies) *CaseService {
	return &CaseService{
		cases:      deps.CaseRepo,
		messages:   deps.MessageRepo,
		photos:     deps.PhotoRepo,
		dispatcher: deps.Dispatcher,
		geocoder:   deps.Geocoder,
		media:      deps.Media,
	}
}

// CreateCase inserts a case in state new and publishes case_created.
func (s *CaseService) CreateCase(ctx context.Context, userID string, input CaseCreateInput) (*domain.Case, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	if input.Category != nil && !domain.IsValidCategory(*input.Category) {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": *input.Category})
	}

	address := input.Address
	if address == nil && input.Latitude != nil && input.Longitude != nil && s.geocoder != nil {
		resolved := s.geocoder.ReverseGeocode(ctx, *input.Latitude, *input.Longitude)
		if resolved != "" {
			address = &resolved
		}
	}

	c := &domain.Case{
		UserID:      userID,
		Title:       title,
		Description: input.Description,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		Address:     address,
		Status:      domain.CaseStatusNew,
		Category:    input.Category,
	}
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, apperrors.NewDependencyError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventCaseCreated,
		CaseID:  c.ID,
		Payload: events.CaseCreatedPayload{Case: events.SnapshotCase(c)},
	})
	return c, nil
}

// ListCases returns the caller's cases with nested photos and messages,
// newest case first.
func (s *CaseService) ListCases(ctx context.Context, userID string) ([]domain.CaseDetail, error) {
	cases, err := s.cases.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDependencyError(err)
	}
	result := make([]domain.CaseDetail, 0, len(cases))
	for i := range cases {
		detail, err := s.assembleDetail(ctx, &cases[i])
		if err != nil {
			return nil, err
		}
		result = append(result, *detail)
	}
	return result, nil
}

// GetCase returns one case with the nested shape, scoped to the caller. An
// unknown identifier and a case owned by someone else are indistinguishable.
func (s *CaseService) GetCase(ctx context.Context, userID, caseID string) (*domain.CaseDetail, error) {
	c, err := s.cases.GetByIDForUser(ctx, caseID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", nil)
		}
		return nil, apperrors.NewDependencyError(err)
	}
	return s.assembleDetail(ctx, c)
}

// SendMessage appends a citizen message to an owned case and publishes
// message_sent.
func (s *CaseService) SendMessage(ctx context.Context, userID, caseID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}
	if _, err := s.cases.GetByIDForUser(ctx, caseID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", nil)
		}
		return nil, apperrors.NewDependencyError(err)
	}

	senderID := userID
	msg := &domain.Message{
		CaseID:     caseID,
		Content:    content,
		SenderKind: domain.SenderCitizen,
		SenderID:   &senderID,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.NewDependencyError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:   events.EventMessageSent,
		CaseID: caseID,
		Payload: events.MessageSentPayload{
			MessageID: msg.ID,
			Message:   events.SnapshotMessage(msg),
		},
	})
	return msg, nil
}

// UploadPhoto stores the binary, then records the photo row. When messageID is
// given it must identify a message of the same case; this is checked before
// anything is stored.
func (s *CaseService) UploadPhoto(ctx context.Context, userID, caseID string, messageID *string, reader io.Reader, size int64, contentType, filename string) (*domain.Photo, error) {
	if _, err := s.cases.GetByIDForUser(ctx, caseID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", nil)
		}
		return nil, apperrors.NewDependencyError(err)
	}
	if messageID != nil {
		msg, err := s.messages.GetByID(ctx, *messageID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewValidationError("message does not belong to case", nil)
			}
			return nil, apperrors.NewDependencyError(err)
		}
		if msg.CaseID != caseID {
			return nil, apperrors.NewValidationError("message does not belong to case", nil)
		}
	}

	url, err := s.media.Store(ctx, caseID, reader, size, contentType, filename)
	if err != nil {
		return nil, err
	}

	photo := &domain.Photo{
		CaseID:    caseID,
		MessageID: messageID,
		PhotoURL:  url,
	}
	if err := s.photos.Create(ctx, photo); err != nil {
		return nil, apperrors.NewDependencyError(err)
	}
	return photo, nil
}

func (s *CaseService) assembleDetail(ctx context.Context, c *domain.Case) (*domain.CaseDetail, error) {
	photos, err := s.photos.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, apperrors.NewDependencyError(err)
	}
	msgs, err := s.messages.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, apperrors.NewDependencyError(err)
	}

	byMessage := make(map[string][]domain.Photo)
	for _, photo := range photos {
		if photo.MessageID != nil {
			byMessage[*photo.MessageID] = append(byMessage[*photo.MessageID], photo)
		}
	}

	detail := &domain.CaseDetail{Case: *c, Photos: photos}
	detail.Messages = make([]domain.MessageDetail, 0, len(msgs))
	for _, msg := range msgs {
		detail.Messages = append(detail.Messages, domain.MessageDetail{
			Message: msg,
			Photos:  byMessage[msg.ID],
		})
	}
	return detail, nil
}

func (s *CaseService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
