// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketLimiter(t *testing.T) {
	b := newBucketLimiter(LimitFromWindow(60, time.Minute, 2))
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, b.allow("a", now).Allowed)
	assert.Equal(t, 1, b.allow("a", now).Allowed)

	denied := b.allow("a", now)
	assert.Equal(t, 0, denied.Allowed)
	assert.Equal(t, time.Second, denied.RetryAfter)

	assert.Equal(t, 1, b.allow("b", now).Allowed, "keys are independent")
	assert.Equal(t, 1, b.allow("a", now.Add(time.Second)).Allowed, "one token per second refills")
}

func TestBucketLimiterSweepsIdleKeys(t *testing.T) {
	b := newBucketLimiter(LimitFromWindow(10, time.Minute, 1))
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	b.allow("idle", now)
	b.allow("busy", now)
	require.Len(t, b.buckets, 2)

	later := now.Add(fallbackIdleTTL + time.Minute)
	b.allow("busy", later)

	assert.Len(t, b.buckets, 1)
	assert.Contains(t, b.buckets, "busy")
}

func TestKeyByIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.7:5555"

	assert.Equal(t, "authflow:gcra:198.51.100.7", KeyByIP(r))
}

func TestCeilSeconds(t *testing.T) {
	assert.Equal(t, 0, ceilSeconds(0))
	assert.Equal(t, 1, ceilSeconds(time.Millisecond))
	assert.Equal(t, 2, ceilSeconds(1500*time.Millisecond))
}
