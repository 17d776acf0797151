// Package session keeps operator refresh sessions in Redis, keyed by the
// access token's jti.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/kartupintar-backend/pkg/config"
	redisclient "github.com/angelmondragon/kartupintar-backend/pkg/redis"
)

// rotationLease bounds how long a consumed refresh token stays marked so a
// racing duplicate cannot rotate it twice.
const rotationLease = 30 * time.Second

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errAccessIDRequired    = errors.New("access id is required")
)

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is the read side used by the auth middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager issues and rotates refresh tokens. Redis holds only a SHA-256
// digest of each token.
type Manager struct {
	kv  store
	ttl time.Duration
	now func() time.Time
}

// Rotation is the outcome of a successful refresh.
type Rotation struct {
	UserID       uuid.UUID
	AccessID     string
	RefreshToken string
}

type record struct {
	UserID   uuid.UUID `json:"uid"`
	Digest   string    `json:"rt"`
	IssuedAt int64     `json:"iat"`
}

// NewManager requires the refresh lifetime to outlast the access token it
// is bound to.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	refresh := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	switch {
	case refresh <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case refresh <= access:
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", refresh, access)
	}
	return &Manager{kv: client, ttl: refresh, now: time.Now}, nil
}

// NewAccessID produces the identifier used as the JWT jti and Redis key.
func NewAccessID() string { return uuid.NewString() }

// Generate mints a refresh token bound to accessID and stores its digest.
func (m *Manager) Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", errAccessIDRequired
	}
	if userID == uuid.Nil {
		return "", errors.New("user id is required")
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	value, err := json.Marshal(record{UserID: userID, Digest: digest(token), IssuedAt: m.now().Unix()})
	if err != nil {
		return "", err
	}
	if err := m.kv.Set(ctx, m.kv.AccessSessionKey(accessID), string(value), m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Rotate exchanges the refresh token held for oldAccessID for a new session.
// Each token rotates at most once, even under concurrent requests.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, provided string) (*Rotation, error) {
	if strings.TrimSpace(oldAccessID) == "" || provided == "" {
		return nil, ErrInvalidRefreshToken
	}
	key := m.kv.AccessSessionKey(oldAccessID)

	rec, err := m.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(rec.Digest), []byte(digest(provided))) != 1 {
		return nil, ErrInvalidRefreshToken
	}

	first, err := m.kv.SetNX(ctx, key+":rotated", "1", rotationLease)
	if err != nil {
		return nil, fmt.Errorf("claim rotation: %w", err)
	}
	if !first {
		return nil, ErrInvalidRefreshToken
	}

	out := &Rotation{UserID: rec.UserID, AccessID: NewAccessID()}
	if out.RefreshToken, err = m.Generate(ctx, rec.UserID, out.AccessID); err != nil {
		return nil, err
	}
	if err := m.kv.Del(ctx, key); err != nil {
		return nil, fmt.Errorf("retire session: %w", err)
	}
	return out, nil
}

func (m *Manager) load(ctx context.Context, key string) (record, error) {
	var rec record
	raw, err := m.kv.Get(ctx, key)
	if errors.Is(err, redislib.Nil) {
		return rec, ErrInvalidRefreshToken
	}
	if err != nil {
		return rec, fmt.Errorf("load session: %w", err)
	}
	if json.Unmarshal([]byte(raw), &rec) != nil || rec.UserID == uuid.Nil || rec.Digest == "" {
		return rec, ErrInvalidRefreshToken
	}
	return rec, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errAccessIDRequired
	}
	return m.kv.Del(ctx, m.kv.AccessSessionKey(accessID))
}

// HasSession is false once the session was revoked, rotated or expired.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errAccessIDRequired
	}
	_, err := m.kv.Get(ctx, m.kv.AccessSessionKey(accessID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redislib.Nil):
		return false, nil
	default:
		return false, err
	}
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawStdEncoding.EncodeToString(sum[:])
}
