package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fixmypidge/case-service/internal/domain"
	"github.com/fixmypidge/case-service/internal/repository"
	apperrors "github.com/fixmypidge/case-service/pkg/util/errorutil"
)

type fakeInboundRepo struct {
	statuses map[string]domain.CaseStatus
	messages []domain.Message
	nextID   int
	failures int
}

func newFakeInboundRepo() *fakeInboundRepo {
	return &fakeInboundRepo{statuses: make(map[string]domain.CaseStatus)}
}

func (f *fakeInboundRepo) ApplyExpertMessage(_ context.Context, msg *domain.Message, statusUpdate *domain.CaseStatus) (domain.CaseStatus, error) {
	if f.failures > 0 {
		f.failures--
		return "", errors.New("connection reset")
	}
	current, ok := f.statuses[msg.CaseID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	if statusUpdate != nil && !domain.CanTransition(current, *statusUpdate) {
		return "", repository.ErrInvalidTransition
	}
	f.nextID++
	msg.ID = fmt.Sprintf("msg-%d", f.nextID)
	msg.CreatedAt = time.Now()
	f.messages = append(f.messages, *msg)
	if statusUpdate != nil {
		f.statuses[msg.CaseID] = *statusUpdate
		return *statusUpdate, nil
	}
	return current, nil
}

func (f *fakeInboundRepo) ApplyStatusUpdate(_ context.Context, caseID string, status domain.CaseStatus) (domain.CaseStatus, error) {
	if f.failures > 0 {
		f.failures--
		return "", errors.New("connection reset")
	}
	current, ok := f.statuses[caseID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	if !domain.CanTransition(current, status) {
		return "", repository.ErrInvalidTransition
	}
	f.statuses[caseID] = status
	return status, nil
}

func newWebhookService(repo repository.InboundRepository) *WebhookService {
	return NewWebhookService(repo, repository.NewMemoryIdempotencyStore(), 10*time.Minute, zap.NewNop())
}

func strPtr(s string) *string { return &s }

func TestApplyExpertMessageWithStatus(t *testing.T) {
	repo := newFakeInboundRepo()
	repo.statuses["case-1"] = domain.CaseStatusInReview
	svc := newWebhookService(repo)

	result, err := svc.ApplyEvent(context.Background(), InboundEvent{
		Kind:         EventKindExpertMessage,
		CaseID:       "case-1",
		Message:      &InboundMessage{Content: "Apportez-le chez un vétérinaire", ExpertID: strPtr("exp1")},
		StatusUpdate: strPtr("answered"),
	})
	if err != nil {
		t.Fatalf("apply event failed: %v", err)
	}
	if result.Duplicate {
		t.Fatal("first delivery must not be flagged duplicate")
	}
	if result.Status != domain.CaseStatusAnswered {
		t.Fatalf("expected status answered, got %s", result.Status)
	}
	if len(repo.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(repo.messages))
	}
	msg := repo.messages[0]
	if msg.SenderKind != domain.SenderExpert {
		t.Fatalf("expected sender kind expert, got %s", msg.SenderKind)
	}
	if msg.SenderID == nil || *msg.SenderID != "exp1" {
		t.Fatal("expected sender id exp1")
	}
}

func TestExpertMessageWithoutStatusLeavesStatusUnchanged(t *testing.T) {
	repo := newFakeInboundRepo()
	repo.statuses["case-1"] = domain.CaseStatusInReview
	svc := newWebhookService(repo)

	result, err := svc.ApplyEvent(context.Background(), InboundEvent{
		Kind:    EventKindExpertMessage,
		CaseID:  "case-1",
		Message: &InboundMessage{Content: "toujours en cours"},
	})
	if err != nil {
		t.Fatalf("apply event failed: %v", err)
	}
	if result.Status != domain.CaseStatusInReview {
		t.Fatalf("status must stay in_review, got %s", result.Status)
	}
	if repo.statuses["case-1"] != domain.CaseStatusInReview {
		t.Fatal("status must not be inferred from message content")
	}
}

func TestStatusUpdateAlone(t *testing.T) {
	repo := newFakeInboundRepo()
	repo.statuses["case-1"] = domain.CaseStatusNew
	svc := newWebhookService(repo)

	result, err := svc.ApplyEvent(context.Background(), InboundEvent{
		Kind:         EventKindCaseStatusUpdate,
		CaseID:       "case-1",
		StatusUpdate: strPtr("in_review"),
	})
	if err != nil {
		t.Fatalf("apply event failed: %v", err)
	}
	if result.Status != domain.CaseStatusInReview {
		t.Fatalf("expected in_review, got %s", result.Status)
	}
	if len(repo.messages) != 0 {
		t.Fatal("status update must not insert messages")
	}
}

func TestClosedAcceptsRepeatedCloseIdempotently(t *testing.T) {
	repo := newFakeInboundRepo()
	repo.statuses["case-1"] = domain.CaseStatusClosed
	svc := newWebhookService(repo)

	result, err := svc.ApplyEvent(context.Background(), InboundEvent{
		Kind:           EventKindCaseStatusUpdate,
		CaseID:         "case-1",
		StatusUpdate:   strPtr("closed"),
		IdempotencyKey: "close-again",
	})
	if err != nil {
		t.Fatalf("closing a closed case must succeed: %v", err)
	}
	if result.Status != domain.CaseStatusClosed {
		t.Fatalf("expected closed, got %s", result.Status)
	}
}

func TestUnknownEventKindRejectedWithoutMutation(t *testing.T) {
	repo := newFakeInboundRepo()
	repo.statuses["case-1"] = domain.CaseStatusNew
	svc := newWebhookService(repo)

	_, err := svc.ApplyEvent(context.Background(), InboundEvent{
		Kind:   InboundEventKind("expert_joined"),
		CaseID: "case-1",
	})
	assertDomainErrorCode(t, err, "VALIDATION_FAILED")
	if len(repo.messages) != 0 || repo.statuses["case-1"] != domain.CaseStatusNew {
		t.Fatal("rejected event must not mutate state")
	}
}

func TestMissingRequiredFieldsRejected(t *testing.T) {
	repo := newFakeInboundRepo()
	repo.statuses["case-1"] = domain.CaseStatusNew
	svc := newWebhookService(repo)

	cases := []InboundEvent{
		{Kind: EventKindExpertMessage, CaseID: "case-1"},
		{Kind: EventKindExpertMessage, CaseID: "case-1", Message: &InboundMessage{}},
		{Kind: EventKindExpertMessage, Message: &InboundMessage{Content: "hi"}},
		{Kind: EventKindCaseStatusUpdate, CaseID: "case-1"},
		{Kind: EventKindCaseStatusUpdate, StatusUpdate: strPtr("closed")},
	}
	for i, event := range cases {
		_, err := svc.ApplyEvent(context.Background(), event)
		if err == nil {
			t.Errorf("case %d: expected validation error", i)
			continue
		}
		assertDomainErrorCode(t, err, "VALIDATION_FAILED")
	}
	if len(repo.messages) != 0 {
		t.Fatal("no message may be created by rejected events")
	}
}

func TestUnknownStatusStringRejected(t *testing.T) {
	repo := newFakeInboundRepo()
	repo.statuses["case-1"] = domain.CaseStatusNew
	svc := newWebhookService(repo)

	_, err := svc.ApplyEvent(context.Background(), InboundEvent{
		Kind:         EventKindCaseStatusUpdate,
		CaseID:       "case-1",
		StatusUpdate: strPtr("archived"),
	})
	assertDomainErrorCode(t, err, "VALIDATION_FAILED")
	if repo.statuses["case-1"] != domain.CaseStatusNew {
		t.Fatal("unknown status must not be applied")
	}
}

func TestBackwardTransitionRejected(t *testing.T) {
	repo := newFakeInboundRepo()
	repo.statuses["case-1"] = domain.CaseStatusResolved
	svc := newWebhookService(repo)

	_, err := svc.ApplyEvent(context.Background(), InboundEvent{
		Kind:         EventKindCaseStatusUpdate,
		CaseID:       "case-1",
		StatusUpdate: strPtr("in_review"),
	})
	assertDomainErrorCode(t, err, "VALIDATION_FAILED")
	if repo.statuses["case-1"] != domain.CaseStatusResolved {
		t.Fatal("backward transition must not be applied")
	}
}

func TestUnknownCaseReturnsNotFound(t *testing.T) {
	svc := newWebhookService(newFakeInboundRepo())

	_, err := svc.ApplyEvent(context.Background(), InboundEvent{
		Kind:         EventKindCaseStatusUpdate,
		CaseID:       "missing",
		StatusUpdate: strPtr("closed"),
	})
	assertDomainErrorCode(t, err, "NOT_FOUND")
}

func TestDuplicateDeliverySuppressed(t *testing.T) {
	repo := newFakeInboundRepo()
	repo.statuses["case-1"] = domain.CaseStatusInReview
	svc := newWebhookService(repo)

	event := InboundEvent{
		Kind:         EventKindExpertMessage,
		CaseID:       "case-1",
		Message:      &InboundMessage{Content: "réponse", ExpertID: strPtr("exp1")},
		StatusUpdate: strPtr("answered"),
	}

	first, err := svc.ApplyEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if first.Duplicate {
		t.Fatal("first delivery flagged duplicate")
	}

	second, err := svc.ApplyEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("second identical delivery must be suppressed")
	}
	if len(repo.messages) != 1 {
		t.Fatalf("duplicate delivery double-inserted: %d messages", len(repo.messages))
	}
}

func TestExplicitIdempotencyKeyPreferred(t *testing.T) {
	repo := newFakeInboundRepo()
	repo.statuses["case-1"] = domain.CaseStatusNew
	svc := newWebhookService(repo)

	base := InboundEvent{
		Kind:           EventKindExpertMessage,
		CaseID:         "case-1",
		Message:        &InboundMessage{Content: "a"},
		IdempotencyKey: "delivery-1",
	}
	if _, err := svc.ApplyEvent(context.Background(), base); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}

	// Different content, same key: still a duplicate of the same delivery.
	retry := base
	retry.Message = &InboundMessage{Content: "b"}
	result, err := svc.ApplyEvent(context.Background(), retry)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("same idempotency key must suppress the retry")
	}
	if len(repo.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(repo.messages))
	}
}

func TestRetryAfterFailedApplyIsProcessed(t *testing.T) {
	repo := newFakeInboundRepo()
	repo.statuses["case-1"] = domain.CaseStatusNew
	repo.failures = 1
	svc := newWebhookService(repo)

	event := InboundEvent{
		Kind:         EventKindExpertMessage,
		CaseID:       "case-1",
		Message:      &InboundMessage{Content: "Apportez-le chez un vétérinaire"},
		StatusUpdate: strPtr("in_review"),
	}

	_, err := svc.ApplyEvent(context.Background(), event)
	assertDomainErrorCode(t, err, "DEPENDENCY_FAILED")
	if len(repo.messages) != 0 || repo.statuses["case-1"] != domain.CaseStatusNew {
		t.Fatal("failed apply must not mutate")
	}

	// The upstream retries failed deliveries; the failure must not have
	// consumed the idempotency key.
	result, err := svc.ApplyEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if result.Duplicate {
		t.Fatal("retry of a failed delivery must not be suppressed as duplicate")
	}
	if len(repo.messages) != 1 {
		t.Fatalf("expected 1 message after retry, got %d", len(repo.messages))
	}
	if repo.statuses["case-1"] != domain.CaseStatusInReview {
		t.Fatalf("case status = %s, want in_review", repo.statuses["case-1"])
	}
}

func TestRetryAfterFailedStatusUpdateIsProcessed(t *testing.T) {
	repo := newFakeInboundRepo()
	repo.statuses["case-1"] = domain.CaseStatusNew
	repo.failures = 1
	svc := newWebhookService(repo)

	event := InboundEvent{
		Kind:           EventKindCaseStatusUpdate,
		CaseID:         "case-1",
		StatusUpdate:   strPtr("in_review"),
		IdempotencyKey: "delivery-9",
	}

	_, err := svc.ApplyEvent(context.Background(), event)
	assertDomainErrorCode(t, err, "DEPENDENCY_FAILED")

	result, err := svc.ApplyEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if result.Duplicate {
		t.Fatal("retry of a failed delivery must not be suppressed as duplicate")
	}
	if repo.statuses["case-1"] != domain.CaseStatusInReview {
		t.Fatalf("case status = %s, want in_review", repo.statuses["case-1"])
	}
}

func assertDomainErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	if domainErr.Code != code {
		t.Fatalf("expected code %s, got %s", code, domainErr.Code)
	}
}
