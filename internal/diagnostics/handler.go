// AngelaMos | 2026
// handler.go

package diagnostics

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/authflow/internal/core"
)

type Handler struct {
	dbStats     func() sql.DBStats
	redisStats  func() *redis.PoolStats
	dbPing      func(ctx context.Context) error
	redisPing   func(ctx context.Context) error
	limiterSize func(ctx context.Context) (int, error)
}

// HandlerConfig wires the probes. Any nil probe is reported as absent.
type HandlerConfig struct {
	DBStats     func() sql.DBStats
	RedisStats  func() *redis.PoolStats
	DBPing      func(ctx context.Context) error
	RedisPing   func(ctx context.Context) error
	LimiterSize func(ctx context.Context) (int, error)
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:     cfg.DBStats,
		redisStats:  cfg.RedisStats,
		dbPing:      cfg.DBPing,
		redisPing:   cfg.RedisPing,
		limiterSize: cfg.LimiterSize,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/diagnostics", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetSystemStats)
		r.Get("/db", h.GetDatabaseStats)
		r.Get("/redis", h.GetRedisStats)
		r.Get("/runtime", h.GetRuntimeStats)
		r.Get("/ratelimit", h.GetRateLimitStats)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	core.OK(w, SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: probe(ctx, h.dbPing),
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: probe(ctx, h.redisPing),
			Stats:   h.getRedisStats(),
		},
		Runtime:   readRuntimeStats(),
		RateLimit: h.getRateLimitStats(ctx),
	})
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, readRuntimeStats())
}

func (h *Handler) GetRateLimitStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getRateLimitStats(r.Context()))
}

func probe(ctx context.Context, ping func(context.Context) error) bool {
	if ping == nil {
		return false
	}
	return ping(ctx) == nil
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}

func (h *Handler) getRateLimitStats(ctx context.Context) *RateLimitStats {
	if h.limiterSize == nil {
		return nil
	}

	size, err := h.limiterSize(ctx)
	if err != nil {
		return &RateLimitStats{Error: "store unavailable"}
	}
	return &RateLimitStats{TrackedClients: size}
}

type SystemStatsResponse struct {
	Database  DatabaseStatus  `json:"database"`
	Redis     RedisStatus     `json:"redis"`
	Runtime   RuntimeStats    `json:"runtime"`
	RateLimit *RateLimitStats `json:"rate_limit,omitempty"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
	MaxIdleClosed      int64  `json:"max_idle_closed"`
	MaxIdleTimeClosed  int64  `json:"max_idle_time_closed"`
	MaxLifetimeClosed  int64  `json:"max_lifetime_closed"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}

// RateLimitStats reports the auth window store, not the global limiter.
type RateLimitStats struct {
	TrackedClients int    `json:"tracked_clients"`
	Error          string `json:"error,omitempty"`
}
