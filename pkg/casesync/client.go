// Package casesync is the citizen-side synchronization layer: an HTTP client
// for the case service plus a reloadable projection the UI renders from. The
// projection never merges optimistically; every mutation re-fetches its scope
// so the client cannot diverge from store truth that the automation pipeline
// may have mutated out of band.
package casesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/fixmypidge/case-service/internal/api/dto"
)

// APIError is a non-2xx response decoded from the service error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 API error.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusNotFound
}

// Client wraps the case service HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken installs the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the current bearer token, empty when unauthenticated.
func (c *Client) Token() string {
	return c.token
}

// Login authenticates and installs the session token.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp dataEnvelope[dto.AuthResponse]
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", dto.CredentialsRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return err
	}
	c.token = resp.Data.Token
	return nil
}

// Register creates an account and installs the session token.
func (c *Client) Register(ctx context.Context, email, password string) error {
	var resp dataEnvelope[dto.AuthResponse]
	err := c.doJSON(ctx, http.MethodPost, "/auth/register", dto.CredentialsRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return err
	}
	c.token = resp.Data.Token
	return nil
}

// ListCases fetches all visible cases with their nested threads.
func (c *Client) ListCases(ctx context.Context) ([]dto.CaseDetailResponse, error) {
	var resp dataEnvelope[[]dto.CaseDetailResponse]
	if err := c.doJSON(ctx, http.MethodGet, "/cases", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetCase fetches one nested case.
func (c *Client) GetCase(ctx context.Context, caseID string) (*dto.CaseDetailResponse, error) {
	var resp dataEnvelope[dto.CaseDetailResponse]
	if err := c.doJSON(ctx, http.MethodGet, "/cases/"+caseID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// CreateCase submits a new report.
func (c *Client) CreateCase(ctx context.Context, input dto.CreateCaseRequest) (*dto.CaseResponse, error) {
	var resp dataEnvelope[dto.CaseResponse]
	if err := c.doJSON(ctx, http.MethodPost, "/cases", input, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// SendMessage appends a citizen message.
func (c *Client) SendMessage(ctx context.Context, caseID, content string) (*dto.MessageResponse, error) {
	var resp dataEnvelope[dto.MessageResponse]
	err := c.doJSON(ctx, http.MethodPost, "/cases/"+caseID+"/messages",
		dto.CreateMessageRequest{Content: content}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UploadPhoto streams a photo as multipart form data. messageID, when set,
// attaches the photo to one message of the case.
func (c *Client) UploadPhoto(ctx context.Context, caseID string, messageID *string, filename string, reader io.Reader) (*dto.PhotoResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, reader); err != nil {
		return nil, err
	}
	if messageID != nil {
		if err := writer.WriteField("message_id", *messageID); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cases/"+caseID+"/photos", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuth(req)

	var resp dataEnvelope[dto.PhotoResponse]
	if err := c.send(req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)
	return c.send(req, out)
}

func (c *Client) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope errorEnvelope
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
