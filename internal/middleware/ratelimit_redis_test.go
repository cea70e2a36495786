package middleware

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// redisTestClient connects to a local Redis instance or skips the test.
func redisTestClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// exportBucketKey builds a scoped bucket key the way RouteRateLimiter does,
// made unique per run so leftovers in a shared Redis cannot interfere.
func exportBucketKey(t *testing.T, ip string) string {
	t.Helper()
	return fmt.Sprintf("export:%s:%d", ip, time.Now().UnixNano())
}

func TestRedisRateLimitStore_ExportBudget(t *testing.T) {
	client := redisTestClient(t)

	store := NewRedisRateLimitStore(client)
	config := DefaultExportLimit()
	key := exportBucketKey(t, "203.0.113.5")
	ctx := context.Background()
	defer client.Del(ctx, key)

	for i := 0; i < config.RequestsPerWindow; i++ {
		if allowed, _ := store.Allow(ctx, key, config); !allowed {
			t.Fatalf("export %d should fit the budget of %d", i+1, config.RequestsPerWindow)
		}
	}

	allowed, retryAfter := store.Allow(ctx, key, config)
	if allowed {
		t.Error("export past the budget should be blocked")
	}
	windowSecs := int(config.WindowDuration / time.Second)
	if retryAfter <= 0 || retryAfter > windowSecs {
		t.Errorf("retryAfter = %d, want between 1 and %d", retryAfter, windowSecs)
	}
}

func TestRedisRateLimitStore_ClientsIndependent(t *testing.T) {
	client := redisTestClient(t)

	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	keyA := exportBucketKey(t, "203.0.113.5")
	keyB := exportBucketKey(t, "198.51.100.7")
	ctx := context.Background()
	defer client.Del(ctx, keyA, keyB)

	allowedA, _ := store.Allow(ctx, keyA, config)
	allowedB, _ := store.Allow(ctx, keyB, config)
	if !allowedA || !allowedB {
		t.Error("each client's first export should be allowed")
	}

	blockedA, _ := store.Allow(ctx, keyA, config)
	blockedB, _ := store.Allow(ctx, keyB, config)
	if blockedA || blockedB {
		t.Error("each client should be blocked inside its own window")
	}
}

func TestRedisRateLimitStore_WindowExpiry(t *testing.T) {
	client := redisTestClient(t)

	store := NewRedisRateLimitStore(client)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second}
	key := exportBucketKey(t, "203.0.113.5")
	ctx := context.Background()
	defer client.Del(ctx, key)

	if allowed, _ := store.Allow(ctx, key, config); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _ := store.Allow(ctx, key, config); allowed {
		t.Fatal("second request should be blocked")
	}

	time.Sleep(1100 * time.Millisecond)

	if allowed, _ := store.Allow(ctx, key, config); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

// A rate limiter outage must not take the API down with it.
func TestRedisRateLimitStore_FailOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:       "127.0.0.1:1", // nothing listens here
		MaxRetries: -1,
	})
	defer client.Close()

	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	store := NewRedisRateLimitStore(client).WithMetrics(metrics)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}

	allowed, retryAfter := store.Allow(context.Background(), "export:203.0.113.5", config)
	if !allowed {
		t.Error("expected fail-open when Redis is unreachable")
	}
	if retryAfter != 0 {
		t.Errorf("retryAfter = %d, want 0 on fail-open", retryAfter)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == MetricRateLimitRedisErrors {
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 1 {
				t.Errorf("redis error counter = %v, want 1", v)
			}
			return
		}
	}
	t.Error("redis error counter not collected")
}
