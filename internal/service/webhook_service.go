package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fixmypidge/case-service/internal/domain"
	"github.com/fixmypidge/case-service/internal/repository"
	apperrors "github.com/fixmypidge/case-service/pkg/util/errorutil"
)

// InboundEventKind tags automation-originated events.
type InboundEventKind string

const (
	EventKindExpertMessage    InboundEventKind = "expert_message"
	EventKindCaseStatusUpdate InboundEventKind = "case_status_update"
)

// InboundMessage is the message payload of an expert_message event.
type InboundMessage struct {
	Content  string
	ExpertID *string
}

// InboundEvent is one automation delivery, already decoded from the wire.
type InboundEvent struct {
	Kind           InboundEventKind
	CaseID         string
	Message        *InboundMessage
	StatusUpdate   *string
	IdempotencyKey string
}

// InboundResult reports what an accepted event did.
type InboundResult struct {
	Duplicate bool
	MessageID string
	Status    domain.CaseStatus
}

// WebhookService applies inbound automation events idempotently. The upstream
// pipeline delivers at least once; duplicate deliveries of the same logical
// event are suppressed on an idempotency key.
type WebhookService struct {
	inbound  repository.InboundRepository
	idem     repository.IdempotencyStore
	dedupTTL time.Duration
	logger   *zap.Logger
}

// NewWebhookService constructs the service.
func NewWebhookService(inbound repository.InboundRepository, idem repository.IdempotencyStore, dedupTTL time.Duration, logger *zap.Logger) *WebhookService {
	return &WebhookService{inbound: inbound, idem: idem, dedupTTL: dedupTTL, logger: logger}
}

// ApplyEvent validates and applies one event. Validation happens before any
// mutation; a rejected event leaves the store untouched.
func (s *WebhookService) ApplyEvent(ctx context.Context, event InboundEvent) (*InboundResult, error) {
	var statusUpdate *domain.CaseStatus
	if event.StatusUpdate != nil {
		candidate := domain.CaseStatus(*event.StatusUpdate)
		if !domain.IsValidStatus(candidate) {
			return nil, apperrors.NewValidationError("unknown status value", map[string]any{"status_update": *event.StatusUpdate})
		}
		statusUpdate = &candidate
	}

	switch event.Kind {
	case EventKindExpertMessage:
		if event.CaseID == "" || event.Message == nil || event.Message.Content == "" {
			return nil, apperrors.NewValidationError("case_id and message content required", nil)
		}
	case EventKindCaseStatusUpdate:
		if event.CaseID == "" || statusUpdate == nil {
			return nil, apperrors.NewValidationError("case_id and status_update required", nil)
		}
	default:
		return nil, apperrors.NewValidationError("unknown event kind", map[string]any{"event": string(event.Kind)})
	}

	key := s.dedupKey(event)
	reserved := false
	fresh, err := s.idem.Reserve(ctx, key, s.dedupTTL)
	if err != nil {
		// Losing the dedup store degrades to at-least-once; processing the
		// event beats dropping it.
		s.logger.Warn("idempotency store unavailable", zap.Error(err))
	} else if !fresh {
		s.logger.Info("duplicate webhook delivery suppressed",
			zap.String("case_id", event.CaseID),
			zap.String("event", string(event.Kind)))
		return &InboundResult{Duplicate: true}, nil
	} else {
		reserved = true
	}

	var result *InboundResult
	var applyErr error
	switch event.Kind {
	case EventKindExpertMessage:
		result, applyErr = s.applyExpertMessage(ctx, event, statusUpdate)
	default:
		result, applyErr = s.applyStatusUpdate(ctx, event, *statusUpdate)
	}
	if applyErr != nil {
		// The mutation did not land, so the reservation must not swallow the
		// upstream retry of this delivery.
		if reserved {
			if relErr := s.idem.Release(ctx, key); relErr != nil {
				s.logger.Warn("idempotency key release failed; retry within the window will be suppressed",
					zap.String("case_id", event.CaseID), zap.Error(relErr))
			}
		}
		return nil, applyErr
	}
	return result, nil
}

func (s *WebhookService) applyExpertMessage(ctx context.Context, event InboundEvent, statusUpdate *domain.CaseStatus) (*InboundResult, error) {
	msg := &domain.Message{
		CaseID:     event.CaseID,
		Content:    event.Message.Content,
		SenderKind: domain.SenderExpert,
		SenderID:   event.Message.ExpertID,
	}
	status, err := s.inbound.ApplyExpertMessage(ctx, msg, statusUpdate)
	if err != nil {
		return nil, s.mapApplyError(err)
	}
	s.logger.Info("expert message applied",
		zap.String("case_id", event.CaseID),
		zap.String("message_id", msg.ID),
		zap.String("status", string(status)))
	return &InboundResult{MessageID: msg.ID, Status: status}, nil
}

func (s *WebhookService) applyStatusUpdate(ctx context.Context, event InboundEvent, status domain.CaseStatus) (*InboundResult, error) {
	applied, err := s.inbound.ApplyStatusUpdate(ctx, event.CaseID, status)
	if err != nil {
		return nil, s.mapApplyError(err)
	}
	s.logger.Info("case status updated",
		zap.String("case_id", event.CaseID),
		zap.String("status", string(applied)))
	return &InboundResult{Status: applied}, nil
}

func (s *WebhookService) mapApplyError(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("case", nil)
	case errors.Is(err, repository.ErrInvalidTransition):
		return apperrors.NewValidationError("invalid status transition", nil)
	default:
		return apperrors.NewDependencyError(err)
	}
}

// dedupKey prefers the caller-supplied idempotency key; otherwise it derives
// one from the event's identifying content so that retried deliveries of the
// same logical event hash identically.
func (s *WebhookService) dedupKey(event InboundEvent) string {
	if event.IdempotencyKey != "" {
		return event.IdempotencyKey
	}
	h := sha256.New()
	h.Write([]byte(event.Kind))
	h.Write([]byte{0})
	h.Write([]byte(event.CaseID))
	h.Write([]byte{0})
	if event.Message != nil {
		h.Write([]byte(event.Message.Content))
		h.Write([]byte{0})
		if event.Message.ExpertID != nil {
			h.Write([]byte(*event.Message.ExpertID))
		}
		h.Write([]byte{0})
	}
	if event.StatusUpdate != nil {
		h.Write([]byte(*event.StatusUpdate))
	}
	return hex.EncodeToString(h.Sum(nil))
}
