// Package httpapi exposes the certificate sync protocol over HTTP/JSON:
// registration and login, idempotent certificate creation, full-payload
// upserts, snapshot reads and presigned attachment uploads.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/certsync/certsync/internal/logging"
	"github.com/certsync/certsync/internal/server/auth"
)

type ctxKey int

const userIDKey ctxKey = iota

// Router wires the API handlers to their services.
type Router struct {
	users     UserService
	certs     CertificateService
	log       logging.Logger
	jwtSecret []byte
}

// NewRouter constructs the handler tree.
func NewRouter(users UserService, certs CertificateService, log logging.Logger, jwtSecret []byte) *Router {
	return &Router{users: users, certs: certs, log: log, jwtSecret: jwtSecret}
}

// Handler returns the fully routed http.Handler.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/ping", rt.handlePing)
	mux.HandleFunc("POST /api/v1/users", rt.handleRegister)
	mux.HandleFunc("POST /api/v1/login", rt.handleLogin)

	mux.Handle("POST /api/v1/certificates", rt.requireAuth(rt.handleCreateCertificate))
	mux.Handle("GET /api/v1/certificates/{id}", rt.requireAuth(rt.handleGetCertificate))
	mux.Handle("PUT /api/v1/certificates/{id}", rt.requireAuth(rt.handleUpdateCertificate))
	mux.Handle("POST /api/v1/certificates/{id}/attachments", rt.requireAuth(rt.handlePresignAttachment))

	return mux
}

// requireAuth verifies the bearer token and stores the user id in the
// request context.
func (rt *Router) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := auth.GetUserIDFromToken(token, rt.jwtSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
