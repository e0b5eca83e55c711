package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certsync/certsync/internal/common"
	"github.com/certsync/certsync/internal/logging"
	"github.com/certsync/certsync/internal/server/auth"
	"github.com/certsync/certsync/internal/server/models"
	"github.com/certsync/certsync/internal/server/services"
)

const testSecret = "test-secret"

type stubUsers struct {
	registerErr error
	loginToken  string
	loginErr    error
}

func (s *stubUsers) Register(ctx context.Context, username, password string) (*models.User, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &models.User{ID: "u-1", Username: username}, nil
}

func (s *stubUsers) Login(ctx context.Context, username, password string) (string, error) {
	if s.loginErr != nil {
		return "", s.loginErr
	}
	return s.loginToken, nil
}

type stubCerts struct {
	created   *models.Certificate
	createErr error
	updateErr error
	getCert   *models.Certificate
	getErr    error

	gotUserID    string
	gotClientRef string
}

func (s *stubCerts) Create(ctx context.Context, userID, clientRef string, data []byte) (*models.Certificate, error) {
	s.gotUserID, s.gotClientRef = userID, clientRef
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.created, nil
}

func (s *stubCerts) Update(ctx context.Context, userID, id string, data []byte) (*models.Certificate, error) {
	s.gotUserID = userID
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &models.Certificate{ID: id, UserID: userID, Data: data, UpdatedAt: time.Now()}, nil
}

func (s *stubCerts) Get(ctx context.Context, userID, id string) (*models.Certificate, error) {
	s.gotUserID = userID
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.getCert, nil
}

func (s *stubCerts) GetPresignedPutURL(ctx context.Context, userID, certificateID, contentType string) (string, string, error) {
	return "certificates/" + certificateID + "/key", "https://s3.example/key", nil
}

func newTestServer(t *testing.T, users UserService, certs CertificateService) *httptest.Server {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(NewRouter(users, certs, log, []byte(testSecret)).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPing_NoAuthRequired(t *testing.T) {
	srv := newTestServer(t, &stubUsers{}, &stubCerts{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/ping", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin_ReturnsToken(t *testing.T) {
	srv := newTestServer(t, &stubUsers{loginToken: "jwt-token"}, &stubCerts{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/login", "", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "jwt-token", body.AccessToken)
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := newTestServer(t, &stubUsers{loginErr: common.ErrUnauthorized}, &stubCerts{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/login", "", map[string]string{"username": "alice", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegister_Conflict(t *testing.T) {
	srv := newTestServer(t, &stubUsers{registerErr: common.ErrConflict}, &stubCerts{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users", "", map[string]string{"username": "alice", "password": "pw"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateCertificate_RequiresToken(t *testing.T) {
	srv := newTestServer(t, &stubUsers{}, &stubCerts{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/certificates", "", map[string]any{"client_ref": "tmp-1", "data": map[string]any{}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/certificates", "garbage-token", map[string]any{"client_ref": "tmp-1", "data": map[string]any{}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateCertificate_Success(t *testing.T) {
	certs := &stubCerts{created: &models.Certificate{ID: "cv-1", UpdatedAt: time.Now()}}
	srv := newTestServer(t, &stubUsers{}, certs)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/certificates", bearerToken(t, "u-1"),
		map[string]any{"client_ref": "tmp-abc", "data": map[string]any{"reference": "EICR-1"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "cv-1", body.ID)
	assert.Equal(t, "u-1", certs.gotUserID, "user id comes from the token")
	assert.Equal(t, "tmp-abc", certs.gotClientRef)
}

func TestCreateCertificate_InvalidPayloadIs422(t *testing.T) {
	certs := &stubCerts{createErr: services.ErrInvalidPayload}
	srv := newTestServer(t, &stubUsers{}, certs)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/certificates", bearerToken(t, "u-1"),
		map[string]any{"client_ref": "", "data": map[string]any{}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.Error)
}

func TestGetCertificate_NotFound(t *testing.T) {
	certs := &stubCerts{getErr: common.ErrNotFound}
	srv := newTestServer(t, &stubUsers{}, certs)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/certificates/cv-missing", bearerToken(t, "u-1"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetCertificate_ReturnsSnapshot(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	certs := &stubCerts{getCert: &models.Certificate{
		ID: "cv-1", UserID: "u-1", Data: []byte(`{"reference":"EICR-1"}`), UpdatedAt: now,
	}}
	srv := newTestServer(t, &stubUsers{}, certs)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/certificates/cv-1", bearerToken(t, "u-1"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID        string          `json:"id"`
		Data      json.RawMessage `json:"data"`
		UpdatedAt time.Time       `json:"updated_at"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "cv-1", body.ID)
	assert.JSONEq(t, `{"reference":"EICR-1"}`, string(body.Data))
	assert.True(t, body.UpdatedAt.Equal(now))
}

func TestUpdateCertificate_Success(t *testing.T) {
	certs := &stubCerts{}
	srv := newTestServer(t, &stubUsers{}, certs)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/certificates/cv-1", bearerToken(t, "u-1"),
		map[string]any{"data": map[string]any{"reference": "EICR-2"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		UpdatedAt time.Time `json:"updated_at"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.UpdatedAt.IsZero())
}

func TestPresignAttachment_ReturnsURLAndKey(t *testing.T) {
	srv := newTestServer(t, &stubUsers{}, &stubCerts{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/certificates/cv-1/attachments", bearerToken(t, "u-1"),
		map[string]string{"attachment_id": "att-1", "content_type": "image/jpeg"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		URL string `json:"url"`
		Key string `json:"key"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.URL)
	assert.Contains(t, body.Key, "cv-1")
}
