package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"folio/internal/apperr"
	"folio/internal/database"
)

// LoginRequest carries credentials plus the optional device identifier a
// reader plugin sends so its reading state is keyed per device.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"device_id,omitempty"`
}

// LoginResponse is returned by both login and register.
type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// RegisterRequest carries self-service signup credentials.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type contextKey string

const userContextKey contextKey = "user"

// bearerToken extracts the token from an Authorization: Bearer header.
// Returns the empty string when the header is missing or malformed.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// userFromContext returns the authenticated user stored by RequireAuth.
func userFromContext(ctx context.Context) (*database.User, bool) {
	user, ok := ctx.Value(userContextKey).(*database.User)
	return user, ok
}

// RequireAuth resolves the bearer token on routes that act on a user's
// reading state. The catalog surfaces stay open because OPDS clients
// fetch them anonymously.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, fmt.Errorf("%w: missing bearer token", apperr.ErrUnauthorized))
			return
		}

		user, err := h.auth.Validate(r.Context(), token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestUser returns the user placed in the context by RequireAuth. A
// miss means the route was wired outside the middleware, which is a bug.
func requestUser(w http.ResponseWriter, r *http.Request) (*database.User, bool) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, r, fmt.Errorf("%w: no authenticated user", apperr.ErrUnauthorized))
		return nil, false
	}
	return user, true
}

// Login verifies credentials and issues a bearer token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Username, req.Password, req.DeviceID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, LoginResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
}

// Register creates an account through the self-service gate and logs the
// new user straight in, answering with the same shape as Login.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.auth.Register(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, r, err)
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Username, req.Password, "")
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, LoginResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
}

// Logout deletes the presented session. Requests without a token still
// get a 200 since the goal state, no session, already holds.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSONStatus(w, "logged_out")
}

// Me returns the authenticated account without its password hash.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, user)
}
