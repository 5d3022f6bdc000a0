package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fixmypidge/case-service/internal/auth"
	"github.com/fixmypidge/case-service/internal/domain"
	"github.com/fixmypidge/case-service/internal/repository"
	"github.com/fixmypidge/case-service/internal/service"
	apperrors "github.com/fixmypidge/case-service/pkg/util/errorutil"
)

type stubInboundRepo struct {
	statuses map[string]domain.CaseStatus
	messages []domain.Message
	lastCtx  context.Context
}

func (s *stubInboundRepo) ApplyExpertMessage(ctx context.Context, msg *domain.Message, statusUpdate *domain.CaseStatus) (domain.CaseStatus, error) {
	s.lastCtx = ctx
	current, ok := s.statuses[msg.CaseID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	if statusUpdate != nil {
		if !domain.CanTransition(current, *statusUpdate) {
			return "", repository.ErrInvalidTransition
		}
		current = *statusUpdate
		s.statuses[msg.CaseID] = current
	}
	msg.ID = "msg-stub"
	msg.CreatedAt = time.Now()
	s.messages = append(s.messages, *msg)
	return current, nil
}

func (s *stubInboundRepo) ApplyStatusUpdate(ctx context.Context, caseID string, status domain.CaseStatus) (domain.CaseStatus, error) {
	s.lastCtx = ctx
	current, ok := s.statuses[caseID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	if !domain.CanTransition(current, status) {
		return "", repository.ErrInvalidTransition
	}
	s.statuses[caseID] = status
	return status, nil
}

const testSecret = "hook-secret"

func newWebhookApp(repo *stubInboundRepo) *fiber.App {
	webhookService := service.NewWebhookService(repo, repository.NewMemoryIdempotencyStore(), time.Minute, zap.NewNop())
	handler := NewWebhookHandler(webhookService)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{
				"error": fiber.Map{"code": domainErr.Code, "message": domainErr.Message},
			})
		},
	})
	group := app.Group("/webhooks", auth.WebhookSecret(testSecret))
	group.Post("/automation", handler.HandleEvent)
	return app
}

func postEvent(t *testing.T, app *fiber.App, secret string, payload map[string]any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, "/webhooks/automation", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(auth.SecretHeader, secret)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	var decoded map[string]any
	_ = json.Unmarshal(body, &decoded)
	return resp, decoded
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	repo := &stubInboundRepo{statuses: map[string]domain.CaseStatus{"case-1": domain.CaseStatusNew}}
	app := newWebhookApp(repo)

	resp, _ := postEvent(t, app, "wrong", map[string]any{
		"event":         "status_update",
		"case_id":       "case-1",
		"status_update": "in_review",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if repo.statuses["case-1"] != domain.CaseStatusNew {
		t.Fatal("unauthenticated call must not mutate state")
	}
}

func TestWebhookRejectsMissingSecret(t *testing.T) {
	repo := &stubInboundRepo{statuses: map[string]domain.CaseStatus{"case-1": domain.CaseStatusNew}}
	app := newWebhookApp(repo)

	resp, _ := postEvent(t, app, "", map[string]any{
		"event":   "status_update",
		"case_id": "case-1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWebhookAppliesExpertMessage(t *testing.T) {
	repo := &stubInboundRepo{statuses: map[string]domain.CaseStatus{"case-1": domain.CaseStatusNew}}
	app := newWebhookApp(repo)

	resp, body := postEvent(t, app, testSecret, map[string]any{
		"event":   "expert_message",
		"case_id": "case-1",
		"message": map[string]any{
			"content":   "Apportez-le chez un vétérinaire",
			"expert_id": "expert-7",
		},
		"status_update": "answered",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["success"] != true {
		t.Fatalf("body = %v", body)
	}
	if repo.statuses["case-1"] != domain.CaseStatusAnswered {
		t.Fatalf("case status = %s, want answered", repo.statuses["case-1"])
	}
	if len(repo.messages) != 1 || repo.messages[0].SenderKind != domain.SenderExpert {
		t.Fatal("expert message was not recorded")
	}
}

func TestWebhookRejectsUnknownEvent(t *testing.T) {
	repo := &stubInboundRepo{statuses: map[string]domain.CaseStatus{"case-1": domain.CaseStatusNew}}
	app := newWebhookApp(repo)

	resp, _ := postEvent(t, app, testSecret, map[string]any{
		"event":   "case_reassigned",
		"case_id": "case-1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebhookUnknownCaseIsNotFound(t *testing.T) {
	repo := &stubInboundRepo{statuses: map[string]domain.CaseStatus{}}
	app := newWebhookApp(repo)

	resp, _ := postEvent(t, app, testSecret, map[string]any{
		"event":         "status_update",
		"case_id":       "missing",
		"status_update": "resolved",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

type ctxKey string

func TestWebhookHandlerUsesRequestContext(t *testing.T) {
	repo := &stubInboundRepo{statuses: map[string]domain.CaseStatus{"case-1": domain.CaseStatusNew}}
	webhookService := service.NewWebhookService(repo, repository.NewMemoryIdempotencyStore(), time.Minute, zap.NewNop())
	handler := NewWebhookHandler(webhookService)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(context.WithValue(c.UserContext(), ctxKey("trace"), "abc123"))
		return c.Next()
	})
	group := app.Group("/webhooks", auth.WebhookSecret(testSecret))
	group.Post("/automation", handler.HandleEvent)

	resp, _ := postEvent(t, app, testSecret, map[string]any{
		"event":         "status_update",
		"case_id":       "case-1",
		"status_update": "in_review",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if repo.lastCtx == nil || repo.lastCtx.Value(ctxKey("trace")) != "abc123" {
		t.Fatal("request-scoped context must reach the repository")
	}
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	repo := &stubInboundRepo{statuses: map[string]domain.CaseStatus{"case-1": domain.CaseStatusNew}}
	app := newWebhookApp(repo)

	payload := map[string]any{
		"event":           "status_update",
		"case_id":         "case-1",
		"status_update":   "in_review",
		"idempotency_key": "delivery-42",
	}
	resp, body := postEvent(t, app, testSecret, payload)
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("first delivery: status=%d body=%v", resp.StatusCode, body)
	}

	resp, body = postEvent(t, app, testSecret, payload)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", resp.StatusCode)
	}
	if body["duplicate"] != true {
		t.Fatalf("replay body = %v, want duplicate marker", body)
	}
	if repo.statuses["case-1"] != domain.CaseStatusInReview {
		t.Fatalf("case status = %s, want in_review", repo.statuses["case-1"])
	}
}
