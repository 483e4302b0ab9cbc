package services

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"bikes-api/models"
	"bikes-api/repositories"
)

const (
	SessionCookieName = "_bikes_session"

	SessionTTL  = 24 * time.Hour
	RememberTTL = 14 * 24 * time.Hour
)

var ErrInvalidSession = errors.New("invalid session")

// SessionStore persists the server side of sessions. Find must return
// repositories.ErrNotFound for unknown or expired sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.UserSession) error
	Find(ctx context.Context, id string) (*models.UserSession, error)
	Delete(ctx context.Context, id string) error
}

// SessionClaims is the payload of the session cookie.
type SessionClaims struct {
	SessionID string `json:"sid"`
	UserID    uint   `json:"user_id"`
	jwt.RegisteredClaims
}

// SessionService issues and checks signed session tokens backed by a store.
type SessionService struct {
	store  SessionStore
	secret []byte
	now    func() time.Time
}

func NewSessionService(store SessionStore, secret string) *SessionService {
	return &SessionService{
		store:  store,
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Start opens a session for user and returns the signed cookie value.
func (s *SessionService) Start(ctx context.Context, userID uint, remember bool, ip, userAgent string) (string, *models.UserSession, error) {
	ttl := SessionTTL
	if remember {
		ttl = RememberTTL
	}
	now := s.now()

	if len(userAgent) > 255 {
		userAgent = userAgent[:255]
	}
	session := &models.UserSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Remember:  remember,
		IP:        ip,
		UserAgent: userAgent,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return "", nil, err
	}

	claims := SessionClaims{
		SessionID: session.ID,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "sign session token")
	}
	return token, session, nil
}

// Resolve returns the live session behind token, or ErrInvalidSession.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.UserSession, error) {
	claims, err := s.parse(token, true)
	if err != nil {
		return nil, err
	}

	session, err := s.store.Find(ctx, claims.SessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	if session.UserID != claims.UserID || session.Expired(s.now()) {
		return nil, ErrInvalidSession
	}
	return session, nil
}

// End deletes the session behind token. Expired tokens are still accepted so
// a stale cookie can always be signed out.
func (s *SessionService) End(ctx context.Context, token string) error {
	claims, err := s.parse(token, false)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, claims.SessionID)
}

func (s *SessionService) parse(token string, validateExpiry bool) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if !validateExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &SessionClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !t.Valid || claims.SessionID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
