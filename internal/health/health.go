// Package health implements the dependency probes behind the readiness
// endpoint. The API serves reads from Postgres and fans editor events out
// through Redis, so readiness means both answer within the probe budget.
package health

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
)

// probeTimeout caps a single dependency check so a wedged connection pool
// cannot stall the readiness endpoint past the load balancer's own deadline.
const probeTimeout = 2 * time.Second

// DBChecker probes the Postgres pool backing the map area repositories.
type DBChecker struct {
	db *sql.DB
}

func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database, dialing a fresh connection if the pool is
// empty.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// RedisChecker probes the Redis instance used for rate limit buckets and
// editor event fan-out. It is only wired when Redis is configured.
type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}
