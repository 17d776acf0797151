package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/kartupintar-backend/api/responses"
	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
	"github.com/angelmondragon/kartupintar-backend/pkg/logger"
)

// login bodies are tiny; anything larger is not worth parsing for a username
const maxLoginBody = 16 << 10

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// AuthRateLimitPolicy throttles a credential endpoint per client IP and per
// username. A zero limit disables that dimension.
type AuthRateLimitPolicy struct {
	name          string
	window        time.Duration
	ipLimit       int
	usernameLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, usernameLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, usernameLimit: usernameLimit}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.usernameLimit > 0)
}

// budget is one counter a request must stay under.
type budget struct {
	dimension string
	subject   string
	limit     int
}

func (p AuthRateLimitPolicy) budgets(r *http.Request, body []byte) []budget {
	var out []budget
	if ip := clientIP(r); p.ipLimit > 0 && ip != "" {
		out = append(out, budget{dimension: "ip", subject: ip, limit: p.ipLimit})
	}
	if user := loginUsername(body); p.usernameLimit > 0 && user != "" {
		// usernames are hashed so counters and logs never carry them in clear
		out = append(out, budget{dimension: "user", subject: sha256Hex(user), limit: p.usernameLimit})
	}
	return out
}

func (p AuthRateLimitPolicy) key(b budget) string {
	return "rl:" + b.dimension + ":" + p.name + ":" + b.subject
}

// AuthRateLimit rejects credential attempts over budget with 429. It fails
// closed with 503 when the counter store is unreachable.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		retryAfter := strconv.Itoa(int(policy.window.Seconds()))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if policy.usernameLimit > 0 && r.Body != nil {
				var err error
				if body, err = io.ReadAll(io.LimitReader(r.Body, maxLoginBody)); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			for _, b := range policy.budgets(r, body) {
				n, err := store.IncrWithTTL(ctx, policy.key(b), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if n <= int64(b.limit) {
					continue
				}
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"policy":    policy.name,
					"dimension": b.dimension,
					"subject":   b.subject,
					"attempts":  n,
					"limit":     b.limit,
				}), "auth.rate_limit.blocked")
				w.Header().Set("Retry-After", retryAfter)
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP takes the first X-Forwarded-For hop, then X-Real-IP, then the
// socket peer.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func loginUsername(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var creds struct {
		Username string `json:"username"`
	}
	if json.Unmarshal(body, &creds) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(creds.Username))
}

func sha256Hex(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
