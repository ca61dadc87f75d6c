// Package auth implements account management and bearer-token sessions.
//
// Raw session tokens exist only in transit: the store keeps a SHA-256
// digest, so a leaked database cannot mint valid sessions.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"folio/internal/apperr"
	"folio/internal/database"
	"folio/internal/logging"
	"folio/internal/metrics"
)

const minPasswordLength = 6

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Service provides registration, login, and session validation on top of
// the store.
type Service struct {
	db           *database.Database
	sessionTTL   time.Duration
	registration bool
}

// New creates the auth service. sessionTTL is how long issued sessions
// stay valid; registrationOpen gates the self-service Register path.
func New(db *database.Database, sessionTTL time.Duration, registrationOpen bool) *Service {
	return &Service{
		db:           db,
		sessionTTL:   sessionTTL,
		registration: registrationOpen,
	}
}

// Register creates a regular user account via the self-service endpoint.
// Returns ErrForbidden when registration is closed.
func (s *Service) Register(ctx context.Context, username, password string) (*database.User, error) {
	if !s.registration {
		return nil, fmt.Errorf("%w: registration is closed", apperr.ErrForbidden)
	}
	return s.createUser(ctx, username, password, database.RoleUser)
}

// CreateUser creates an account with an explicit role. This is the admin
// CLI path and ignores the registration gate.
func (s *Service) CreateUser(ctx context.Context, username, password, role string) (*database.User, error) {
	if role != database.RoleUser && role != database.RoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidFormat, role)
	}
	return s.createUser(ctx, username, password, role)
}

func (s *Service) createUser(ctx context.Context, username, password, role string) (*database.User, error) {
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%w: username must be 1-64 characters of letters, digits, _ or -", apperr.ErrInvalidFormat)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperr.ErrInvalidFormat, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &database.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.db.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	logging.Info("Created user %q (role: %s)", username, role)
	return user, nil
}

// Login verifies credentials and issues a session. Unknown usernames and
// wrong passwords return the same ErrUnauthorized so the response does
// not reveal which accounts exist. A non-empty deviceID registers the
// device for the reading-state endpoints.
func (s *Service) Login(ctx context.Context, username, password, deviceID string) (*database.User, string, error) {
	user, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
			return nil, "", fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, "", fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}

	token, err := newToken()
	if err != nil {
		return nil, "", err
	}
	session := &database.Session{
		Token:     hashToken(token),
		UserID:    user.ID,
		DeviceID:  deviceID,
		ExpiresAt: time.Now().Add(s.sessionTTL).Unix(),
	}
	if err := s.db.CreateSession(ctx, session); err != nil {
		return nil, "", fmt.Errorf("creating session: %w", err)
	}

	if err := s.db.TouchLastLogin(ctx, user.ID); err != nil {
		logging.Warn("Recording last login for %q: %v", username, err)
	}
	if deviceID != "" {
		dev := &database.Device{ID: deviceID, UserID: user.ID}
		if err := s.db.UpsertDevice(ctx, dev); err != nil {
			logging.Warn("Registering device %q for %q: %v", deviceID, username, err)
		}
	}

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	logging.Info("User %q logged in", username)
	return user, token, nil
}

// Validate resolves a bearer token to its user. Expired sessions are
// deleted on sight and reported as absent.
func (s *Service) Validate(ctx context.Context, token string) (*database.User, error) {
	hash := hashToken(token)
	session, err := s.db.GetSession(ctx, hash)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid session", apperr.ErrUnauthorized)
		}
		return nil, err
	}

	if session.ExpiresAt <= time.Now().Unix() {
		if err := s.db.DeleteSession(ctx, hash); err != nil {
			logging.Warn("Deleting expired session: %v", err)
		}
		return nil, fmt.Errorf("%w: session expired", apperr.ErrUnauthorized)
	}

	user, err := s.db.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// The account was deleted out from under the session.
			return nil, fmt.Errorf("%w: invalid session", apperr.ErrUnauthorized)
		}
		return nil, err
	}
	return user, nil
}

// Logout deletes the session for token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.db.DeleteSession(ctx, hashToken(token))
}

// ChangePassword replaces a user's password hash and invalidates all of
// their sessions.
func (s *Service) ChangePassword(ctx context.Context, username, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", apperr.ErrInvalidFormat, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	found, err := s.db.UpdateUserPassword(ctx, username, string(hash))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: user %q", apperr.ErrNotFound, username)
	}
	logging.Info("Password changed for %q, sessions invalidated", username)
	return nil
}

// newToken returns a fresh 32-byte bearer token, base64url without
// padding.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashToken returns the hex SHA-256 digest stored in the sessions table.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
