package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/certsync/certsync/internal/client/models"
	"github.com/certsync/certsync/internal/common"
)

const defaultRequestTimeout = 12 * time.Second

// HTTPClient implements Client over the gateway's JSON API. All requests
// carry the bearer token obtained by Login and are bounded by the request
// timeout: a timed-out call maps to ErrUnavailable, never to success or to a
// rejection.
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPClient returns a gateway client for the given base URL, e.g.
// "https://api.certsync.example". A zero timeout falls back to the default.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken installs a bearer token obtained elsewhere (e.g. a stored
// session).
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the currently installed bearer token, empty if none.
func (c *HTTPClient) Token() string {
	return c.bearer()
}

func (c *HTTPClient) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) endpoint(parts ...string) string {
	u := c.baseURL + "/api/v1"
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// mapStatus converts HTTP status classes into the engine's error taxonomy.
func mapStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: server returned %s", ErrUnavailable, resp.Status)
	default:
		return &RejectedError{StatusCode: resp.StatusCode, Reason: readReason(resp.Body)}
	}
}

func readReason(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.endpoint("ping"), nil, nil)
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) error {
	req := map[string]string{"username": username, "password": password}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, c.endpoint("login"), req, &resp); err != nil {
		return err
	}
	c.SetToken(resp.AccessToken)
	return nil
}

type certificatePayload struct {
	ClientRef string                  `json:"client_ref,omitempty"`
	Data      *models.CertificateData `json:"data"`
}

func (c *HTTPClient) Create(ctx context.Context, clientRef string, data *models.CertificateData) (*CreateResult, error) {
	req := certificatePayload{ClientRef: clientRef, Data: data}
	var resp struct {
		ID        string    `json:"id"`
		CreatedAt time.Time `json:"created_at"`
	}
	if err := c.do(ctx, http.MethodPost, c.endpoint("certificates"), req, &resp); err != nil {
		return nil, err
	}
	return &CreateResult{ID: resp.ID, CreatedAt: resp.CreatedAt}, nil
}

func (c *HTTPClient) Fetch(ctx context.Context, id string) (*Snapshot, error) {
	var resp struct {
		ID        string                 `json:"id"`
		Data      models.CertificateData `json:"data"`
		UpdatedAt time.Time              `json:"updated_at"`
	}
	if err := c.do(ctx, http.MethodGet, c.endpoint("certificates", id), nil, &resp); err != nil {
		return nil, err
	}
	return &Snapshot{ID: resp.ID, Data: resp.Data, UpdatedAt: resp.UpdatedAt}, nil
}

func (c *HTTPClient) Update(ctx context.Context, id string, data *models.CertificateData) (*UpdateResult, error) {
	req := certificatePayload{Data: data}
	var resp struct {
		UpdatedAt time.Time `json:"updated_at"`
	}
	if err := c.do(ctx, http.MethodPut, c.endpoint("certificates", id), req, &resp); err != nil {
		return nil, err
	}
	return &UpdateResult{UpdatedAt: resp.UpdatedAt}, nil
}

func (c *HTTPClient) PresignAttachment(ctx context.Context, certificateID string, a *models.Attachment) (*PresignedUpload, error) {
	req := map[string]string{"attachment_id": a.ID, "content_type": a.ContentType}
	var resp struct {
		URL string `json:"url"`
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, c.endpoint("certificates", certificateID, "attachments"), req, &resp); err != nil {
		return nil, err
	}
	return &PresignedUpload{URL: resp.URL, Key: resp.Key}, nil
}

// UploadAttachment PUTs the file body to the presigned URL.
func (c *HTTPClient) UploadAttachment(ctx context.Context, upload *PresignedUpload, a *models.Attachment) error {
	body, err := os.ReadFile(a.Path)
	if err != nil {
		return fmt.Errorf("failed to read attachment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, upload.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", a.ContentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
