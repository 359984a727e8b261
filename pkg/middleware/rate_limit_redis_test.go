package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fansite/contentflow/internal/workflow"
	"github.com/fansite/contentflow/pkg/metrics"
)

func redisLimited(t *testing.T, rps float64, burst int) (*mr.Miniredis, *gin.Engine) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Actor"); id != "" {
			c.Set(ActorKey, workflow.Actor{ID: id, Role: workflow.RoleUser})
		}
		c.Next()
	})
	r.Use(RedisRateLimitMiddleware(client, rps, burst, time.Second))
	r.GET("/r", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return m, r
}

func getAs(r *gin.Engine, actor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/r", nil)
	if actor != "" {
		req.Header.Set("X-Actor", actor)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRedisRateLimitMiddleware_Window(t *testing.T) {
	m, r := redisLimited(t, 1, 0) // one request per second
	rejected := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("redis"))

	require.Equal(t, http.StatusOK, getAs(r, "").Code)
	w := getAs(r, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
	require.Equal(t, rejected+1, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("redis")))

	// the window key expires with the miniredis clock
	m.FastForward(2 * time.Second)
	require.Equal(t, http.StatusOK, getAs(r, "").Code)
}

func TestRedisRateLimitMiddleware_PerActor(t *testing.T) {
	m, r := redisLimited(t, 1, 1)

	require.Equal(t, http.StatusOK, getAs(r, "alice").Code)
	require.Equal(t, http.StatusOK, getAs(r, "alice").Code)
	require.Equal(t, http.StatusTooManyRequests, getAs(r, "alice").Code)
	require.Equal(t, http.StatusOK, getAs(r, "bob").Code)

	var aliceKeys int
	for _, k := range m.Keys() {
		if strings.HasPrefix(k, "rl:sub:alice:") {
			aliceKeys++
		}
	}
	require.GreaterOrEqual(t, aliceKeys, 1)
}

func TestRedisRateLimitMiddleware_RedisDown(t *testing.T) {
	m, r := redisLimited(t, 10, 10)
	m.Close()

	w := getAs(r, "alice")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), string(workflow.KindStorageUnavailable))
}

func TestRedisRateLimitMiddleware_NilClientFallsBack(t *testing.T) {
	r := gin.New()
	r.Use(RedisRateLimitMiddleware(nil, 1, 1, time.Second))
	r.GET("/r", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, get(r, "/r"))
	require.Equal(t, http.StatusTooManyRequests, get(r, "/r"))
}
