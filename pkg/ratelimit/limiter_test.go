package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityhail/dispatch/pkg/config"
)

func testConfig(enabled bool) config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:       enabled,
		WindowSeconds: 60,
		Limit:         10,
		Burst:         5,
		RedisPrefix:   "ratelimit",
	}
}

func TestLimiter_Disabled_AlwaysAllows(t *testing.T) {
	db, _ := redismock.NewClientMock()
	limiter := NewLimiter(db, testConfig(false))

	result, err := limiter.Allow(context.Background(), "POST:/ride/request", "10.0.0.1", limiter.DefaultRule())
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 10, result.Limit)
}

func TestLimiter_ZeroLimit_Allows(t *testing.T) {
	db, _ := redismock.NewClientMock()
	limiter := NewLimiter(db, testConfig(true))

	result, err := limiter.Allow(context.Background(), "GET:/rides", "10.0.0.1", Rule{Limit: 0})
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestLimiter_DefaultRule(t *testing.T) {
	db, _ := redismock.NewClientMock()
	limiter := NewLimiter(db, testConfig(true))

	rule := limiter.DefaultRule()
	assert.Equal(t, 10, rule.Limit)
	assert.Equal(t, 5, rule.Burst)
	assert.Equal(t, 60*time.Second, rule.Window)
}

func TestLimiter_Allow_TokenAvailable(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewLimiter(db, testConfig(true))
	limiter.WithNow(func() time.Time { return time.Unix(1700000000, 0) })

	sha := redis.NewScript(tokenBucketScript).Hash()
	anyArgs := func(expected, actual []interface{}) error { return nil }

	mock.CustomMatch(anyArgs).
		ExpectEvalSha(sha, []string{"ratelimit:POST:/ride/request:10.0.0.1"}, 0, 0, 0, 0).
		SetVal([]interface{}{int64(1), "14", int64(0)})

	result, err := limiter.Allow(context.Background(), "POST:/ride/request", "10.0.0.1", limiter.DefaultRule())
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 14, result.Remaining)
	assert.Equal(t, time.Duration(0), result.RetryAfter)
}

func TestLimiter_Allow_BucketEmpty(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewLimiter(db, testConfig(true))
	limiter.WithNow(func() time.Time { return time.Unix(1700000000, 0) })

	sha := redis.NewScript(tokenBucketScript).Hash()
	anyArgs := func(expected, actual []interface{}) error { return nil }

	mock.CustomMatch(anyArgs).
		ExpectEvalSha(sha, []string{"ratelimit:POST:/ride/request:10.0.0.1"}, 0, 0, 0, 0).
		SetVal([]interface{}{int64(0), "0", int64(6000)})

	result, err := limiter.Allow(context.Background(), "POST:/ride/request", "10.0.0.1", limiter.DefaultRule())
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 6*time.Second, result.RetryAfter)
}
