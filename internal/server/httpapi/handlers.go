package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/certsync/certsync/internal/common"
	"github.com/certsync/certsync/internal/server/models"
	"github.com/certsync/certsync/internal/server/services"
)

// UserService is the slice of the user service the API needs.
type UserService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

// CertificateService is the slice of the certificate service the API needs.
type CertificateService interface {
	Create(ctx context.Context, userID, clientRef string, data []byte) (*models.Certificate, error)
	Update(ctx context.Context, userID, id string, data []byte) (*models.Certificate, error)
	Get(ctx context.Context, userID, id string) (*models.Certificate, error)
	GetPresignedPutURL(ctx context.Context, userID, certificateID, contentType string) (string, string, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}

// writeServiceError maps service errors onto the API's status taxonomy.
// 4xx statuses mean the request itself is at fault and retrying the same
// payload will not help; only 5xx signals a server-side failure.
func (rt *Router) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, common.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, services.ErrInvalidPayload):
		writeError(w, http.StatusUnprocessableEntity, "invalid certificate payload")
	default:
		rt.log.Error(r.Context(), "internal error", "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (rt *Router) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := rt.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID, "username": user.Username})
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	token, err := rt.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

type certificateRequest struct {
	ClientRef string          `json:"client_ref"`
	Data      json.RawMessage `json:"data"`
}

func (rt *Router) handleCreateCertificate(w http.ResponseWriter, r *http.Request) {
	var req certificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	cert, err := rt.certs.Create(r.Context(), userIDFromContext(r.Context()), req.ClientRef, req.Data)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		ID        string    `json:"id"`
		CreatedAt time.Time `json:"created_at"`
	}{ID: cert.ID, CreatedAt: cert.UpdatedAt})
}

func (rt *Router) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	cert, err := rt.certs.Get(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		ID        string          `json:"id"`
		Data      json.RawMessage `json:"data"`
		UpdatedAt time.Time       `json:"updated_at"`
	}{ID: cert.ID, Data: cert.Data, UpdatedAt: cert.UpdatedAt})
}

func (rt *Router) handleUpdateCertificate(w http.ResponseWriter, r *http.Request) {
	var req certificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	cert, err := rt.certs.Update(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"), req.Data)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		UpdatedAt time.Time `json:"updated_at"`
	}{UpdatedAt: cert.UpdatedAt})
}

func (rt *Router) handlePresignAttachment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AttachmentID string `json:"attachment_id"`
		ContentType  string `json:"content_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	key, url, err := rt.certs.GetPresignedPutURL(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"), req.ContentType)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url, "key": key})
}
