package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/kartupintar-backend/api/responses"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/kartupintar-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// how long an in-flight claim blocks duplicates if the handler never settles
	inFlightTTL = time.Minute

	idempotencyHeader = "Idempotency-Key"
)

// idempotentRoutes maps "METHOD path" to the replay window. Balance
// mutations keep their records for a week.
var idempotentRoutes = map[string]time.Duration{
	http.MethodPost + " /api/v1/ledger/purchase": criticalIdempotencyTTL,
	http.MethodPost + " /api/v1/ledger/topup":    criticalIdempotencyTTL,
	http.MethodPost + " /api/v1/admin/members":   defaultIdempotencyTTL,
	http.MethodPost + " /api/v1/admin/users":     defaultIdempotencyTTL,
	http.MethodPost + " /api/v1/admin/menu":      defaultIdempotencyTTL,
}

// storedResponse is the JSON value kept under an idempotency key. A record
// with InFlight set is a claim whose handler has not finished.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
	BodyHash    string `json:"request_hash"`
	InFlight    bool   `json:"pending,omitempty"`
}

var (
	errKeyInFlight = pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is in progress")
	errKeyReused   = pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
)

// Idempotency replays the stored response when a request repeats its
// Idempotency-Key with the same body. Server errors are not stored so the
// client may retry them.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := routeTTL(r.Method, requestPath(r))
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			g := idempotencyGuard{
				store:    store,
				key:      store.IdempotencyKey(callerScope(r), clientKey),
				bodyHash: digest(body),
			}

			prior, err := g.claim(ctx)
			if err != nil {
				fail(err)
				return
			}
			if prior != nil {
				prior.replay(w)
				return
			}

			tee := &teeWriter{ResponseWriter: w}
			next.ServeHTTP(tee, r)

			if err := g.settle(ctx, tee, ttl); err != nil {
				logg.Error(ctx, "settle idempotency key", err)
			}
		})
	}
}

type idempotencyGuard struct {
	store    pkgredis.IdempotencyStore
	key      string
	bodyHash string
}

// claim takes the key for this request. When the key already exists it
// returns the finished response to replay, or an error for an in-flight or
// mismatched duplicate.
func (g idempotencyGuard) claim(ctx context.Context) (*storedResponse, error) {
	marker, err := json.Marshal(storedResponse{BodyHash: g.bodyHash, InFlight: true})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency claim")
	}
	won, err := g.store.SetNX(ctx, g.key, string(marker), inFlightTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	if won {
		return nil, nil
	}

	raw, err := g.store.Get(ctx, g.key)
	switch {
	case errors.Is(err, redis.Nil) || (err == nil && raw == ""):
		// the claim expired between SETNX and GET
		return nil, errKeyInFlight
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}

	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	if prior.BodyHash != g.bodyHash {
		return nil, errKeyReused
	}
	if prior.InFlight {
		return nil, errKeyInFlight
	}
	return &prior, nil
}

// settle stores the captured response, or frees the key after a 5xx.
func (g idempotencyGuard) settle(ctx context.Context, tee *teeWriter, ttl time.Duration) error {
	status := tee.statusCode()
	if status >= http.StatusInternalServerError {
		return g.store.Del(ctx, g.key)
	}
	payload, err := json.Marshal(storedResponse{
		Status:      status,
		ContentType: tee.Header().Get("Content-Type"),
		Body:        base64.StdEncoding.EncodeToString(tee.buf.Bytes()),
		BodyHash:    g.bodyHash,
	})
	if err != nil {
		return err
	}
	return g.store.Set(ctx, g.key, string(payload), ttl)
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(s.Status)
	if body, err := base64.StdEncoding.DecodeString(s.Body); err == nil {
		_, _ = w.Write(body)
	}
}

// callerScope keeps keys from colliding across operators and endpoints.
func callerScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

func digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// requestPath is matched instead of the chi route pattern, which is still
// partial while group middleware runs.
func requestPath(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	if p := r.URL.Path; len(p) > 1 {
		return strings.TrimSuffix(p, "/")
	}
	return r.URL.Path
}

func routeTTL(method, path string) (time.Duration, bool) {
	ttl, ok := idempotentRoutes[method+" "+path]
	return ttl, ok
}

// teeWriter passes the response through while keeping a copy of it.
type teeWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (t *teeWriter) WriteHeader(code int) {
	if t.status == 0 {
		t.status = code
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(b []byte) (int, error) {
	if t.status == 0 {
		t.status = http.StatusOK
	}
	t.buf.Write(b)
	return t.ResponseWriter.Write(b)
}

func (t *teeWriter) statusCode() int {
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}
