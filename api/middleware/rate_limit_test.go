package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kartupintar-backend/pkg/enums"
	pkgredis "github.com/angelmondragon/kartupintar-backend/pkg/redis"
	"github.com/angelmondragon/kartupintar-backend/pkg/redis/redistest"
)

func TestRateLimitPerOperator(t *testing.T) {
	limiter := pkgredis.NewFromCmdable(redistest.NewCmdable())
	handler := RateLimit(limiter, 2, time.Minute, nil)(okHandler())

	alice := uuid.New()
	bob := uuid.New()
	send := func(id uuid.UUID) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/members", nil)
		req = req.WithContext(WithCaller(req.Context(), typesCaller(id, enums.UserRoleAdmin)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if send(alice) != http.StatusOK || send(alice) != http.StatusOK {
		t.Fatalf("expected first two requests to pass")
	}
	if code := send(alice); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send(bob); code != http.StatusOK {
		t.Fatalf("other operators keep their own budget, got %d", code)
	}
}

func TestRateLimitFailsOpenOnStoreError(t *testing.T) {
	fake := redistest.NewCmdable()
	fake.Err = errFake
	handler := RateLimit(pkgredis.NewFromCmdable(fake), 1, time.Minute, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected pass-through on limiter error, got %d", rec.Code)
		}
	}
}
