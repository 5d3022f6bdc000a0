package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/fixmypidge/case-service/internal/auth"
	"github.com/fixmypidge/case-service/internal/config"
	"github.com/fixmypidge/case-service/internal/events"
)

// SourceHeader identifies this application on outbound webhook calls.
const SourceHeader = "x-source"

// NotificationService forwards citizen-originated events to the automation
// pipeline. Delivery is best-effort and detached from the caller: a failed
// forward is logged and discarded, never retried here and never surfaced to
// the citizen whose local mutation already committed.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.WebhookConfig
	client     *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.WebhookConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout()},
	}
}

// RegisterHandlers subscribes to the forwarded event types.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventCaseCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventMessageSent, n.handleEvent)
}

func (n *NotificationService) handleEvent(_ context.Context, event events.Event) error {
	// Detached from the publishing request: the citizen's operation is
	// complete once the local write committed.
	go n.deliver(event)
	return nil
}

func (n *NotificationService) deliver(event events.Event) {
	if n.cfg.OutboundURL == "" {
		n.logger.Debug("automation webhook url not configured; skipping delivery",
			zap.String("event", string(event.Type)))
		return
	}

	body, err := json.Marshal(n.outboundBody(event))
	if err != nil {
		n.logger.Error("marshal outbound webhook", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.OutboundURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("build outbound webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.SecretHeader, n.cfg.Secret)
	req.Header.Set(SourceHeader, n.cfg.SourceName)

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("outbound webhook delivery failed",
			zap.String("event", string(event.Type)),
			zap.String("case_id", event.CaseID),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("outbound webhook rejected",
			zap.String("event", string(event.Type)),
			zap.String("case_id", event.CaseID),
			zap.Int("status", resp.StatusCode))
		return
	}
	n.logger.Info("outbound webhook delivered",
		zap.String("event", string(event.Type)),
		zap.String("case_id", event.CaseID))
}

func (n *NotificationService) outboundBody(event events.Event) map[string]any {
	body := map[string]any{
		"event":   string(event.Type),
		"case_id": event.CaseID,
	}
	switch payload := event.Payload.(type) {
	case events.CaseCreatedPayload:
		body["case"] = payload.Case
	case events.MessageSentPayload:
		body["message_id"] = payload.MessageID
		body["message"] = payload.Message
	}
	return body
}
