package casesync

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fixmypidge/case-service/internal/api/dto"
)

// DefaultInitTimeout bounds the session bootstrap. Past it the store degrades
// to an unauthenticated state instead of hanging.
const DefaultInitTimeout = 5 * time.Second

// Store is the reloadable projection the citizen UI renders from. It holds no
// authoritative state: any mutation triggers a re-fetch of its scope, and a
// failed fetch leaves the previously held projection intact.
type Store struct {
	client *Client
	logger *zap.Logger

	mu            sync.RWMutex
	authenticated bool
	cases         []dto.CaseDetailResponse
	current       *dto.CaseDetailResponse
}

// NewStore constructs a store over the given client.
func NewStore(client *Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, logger: logger}
}

// Init performs the session bootstrap under a fixed timeout. When the login
// does not resolve in time the store comes up unauthenticated rather than
// blocking the caller indefinitely.
func (s *Store) Init(ctx context.Context, email, password string, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultInitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.client.Login(ctx, email, password); err != nil {
		s.logger.Warn("session bootstrap failed; starting unauthenticated", zap.Error(err))
		s.setAuthenticated(false)
		return
	}
	s.setAuthenticated(true)
}

// Authenticated reports whether the bootstrap produced a session.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Cases returns a copy of the last successfully fetched case list, so
// callers cannot mutate the projection the store refreshes in place.
func (s *Store) Cases() []dto.CaseDetailResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cases == nil {
		return nil
	}
	copied := make([]dto.CaseDetailResponse, len(s.cases))
	copy(copied, s.cases)
	return copied
}

// CurrentCase returns a copy of the last successfully fetched single case,
// or nil.
func (s *Store) CurrentCase() *dto.CaseDetailResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}

// FetchCases reloads the case list. On failure the previous list is retained
// and the error returned for the caller to surface.
func (s *Store) FetchCases(ctx context.Context) error {
	fetched, err := s.client.ListCases(ctx)
	if err != nil {
		s.logger.Warn("fetch cases failed; retaining previous list", zap.Error(err))
		return err
	}
	s.mu.Lock()
	s.cases = fetched
	s.mu.Unlock()
	return nil
}

// FetchCase reloads one case into the current slot. On failure the previous
// value is retained.
func (s *Store) FetchCase(ctx context.Context, caseID string) error {
	fetched, err := s.client.GetCase(ctx, caseID)
	if err != nil {
		s.logger.Warn("fetch case failed; retaining previous state",
			zap.String("case_id", caseID), zap.Error(err))
		return err
	}
	s.mu.Lock()
	s.current = fetched
	s.mu.Unlock()
	return nil
}

// CreateCase submits a new report, refreshes the list so the caller can
// immediately navigate to a consistent view, and returns the new identifier.
func (s *Store) CreateCase(ctx context.Context, input dto.CreateCaseRequest) (string, error) {
	created, err := s.client.CreateCase(ctx, input)
	if err != nil {
		return "", err
	}
	if err := s.FetchCases(ctx); err != nil {
		// The case exists; the stale list self-heals on the next fetch.
		s.logger.Warn("list refresh after create failed", zap.Error(err))
	}
	return created.ID, nil
}

// SendMessage appends a citizen message and refreshes only the affected case.
func (s *Store) SendMessage(ctx context.Context, caseID, content string) error {
	if strings.TrimSpace(content) == "" {
		return &APIError{Status: 400, Code: "VALIDATION_FAILED", Message: "content required"}
	}
	if _, err := s.client.SendMessage(ctx, caseID, content); err != nil {
		return err
	}
	return s.FetchCase(ctx, caseID)
}

// UploadPhoto stores a photo against the case (and optionally one of its
// messages), refreshes the case, and returns the durable URL.
func (s *Store) UploadPhoto(ctx context.Context, caseID string, messageID *string, filename string, reader io.Reader) (string, error) {
	photo, err := s.client.UploadPhoto(ctx, caseID, messageID, filename, reader)
	if err != nil {
		return "", err
	}
	if err := s.FetchCase(ctx, caseID); err != nil {
		s.logger.Warn("case refresh after upload failed",
			zap.String("case_id", caseID), zap.Error(err))
	}
	return photo.PhotoURL, nil
}

func (s *Store) setAuthenticated(v bool) {
	s.mu.Lock()
	s.authenticated = v
	s.mu.Unlock()
}
