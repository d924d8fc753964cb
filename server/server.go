// Package server is the HTTP surface over the cache and job-queue cores.
// It owns no cache or queue logic: handlers derive cache keys, pick TTLs
// from configuration, and call the two narrow contracts (cache.Exec and
// Pool.Submit/Inspect).
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/sirupsen/logrus"

	"github.com/quenchd/quench/cache"
	"github.com/quenchd/quench/config"
	"github.com/quenchd/quench/jobs"
)

// computeDelay simulates the expensive computation behind the cache.
const computeDelay = 200 * time.Millisecond

// ComputeFunc produces the payload for a compute key on a cache miss.
type ComputeFunc func(ctx context.Context, key string) (map[string]any, error)

// Server wires the HTTP routes to the cache façade and the worker pool.
type Server struct {
	cache    cache.Cache
	pool     *jobs.Pool
	settings config.Settings
	log      logrus.FieldLogger
	compute  ComputeFunc
}

// New creates a Server. compute may be nil, in which case the built-in
// simulated computation is used.
func New(c cache.Cache, pool *jobs.Pool, settings config.Settings, log logrus.FieldLogger, compute ComputeFunc) *Server {
	s := &Server{
		cache:    c,
		pool:     pool,
		settings: settings,
		log:      log,
		compute:  compute,
	}
	if s.compute == nil {
		s.compute = s.simulatedCompute
	}
	return s
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if s.settings.EnableCORS {
		// Allow-all CORS so the demo endpoints are callable from any
		// browser origin.
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowAllOrigins = true
		r.Use(cors.New(corsCfg))
	}
	if s.settings.EnforceHTTPS {
		r.Use(s.httpsEnforcement())
	}

	r.GET("/", s.index)
	r.GET("/health", s.health)
	r.GET("/whoami", s.whoami)
	r.GET("/compute/:key", s.computeAndCache)
	r.POST("/jobs", s.submitJob)
	r.GET("/jobs", s.listJobs)
	r.GET("/jobs/:id", s.getJob)
	return r
}

func (s *Server) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "read-through cache and async job queue demo",
		"endpoints": []string{
			"/health",
			"/whoami",
			"/compute/{key}?ttl=60",
			"POST /jobs",
			"/jobs",
			"/jobs/{id}",
		},
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// whoami identifies the serving process, which makes round-robin load
// balancing across processes observable from a browser.
func (s *Server) whoami(c *gin.Context) {
	hostname, _ := os.Hostname()
	hint := os.Getenv("WORKER_ID")
	if hint == "" {
		hint = "n/a"
	}
	out := gin.H{
		"hostname":    hostname,
		"pid":         os.Getpid(),
		"worker_hint": hint,
	}
	if info, err := host.InfoWithContext(c.Request.Context()); err == nil {
		out["os"] = info.OS
		out["platform"] = info.Platform
		out["uptime_seconds"] = info.Uptime
	}
	c.JSON(http.StatusOK, out)
}

// computeAndCache is the read-through path: derive the cache key from the
// request identity, pick the TTL (query override or configured default),
// and let cache.Exec do the rest.
func (s *Server) computeAndCache(c *gin.Context) {
	key := c.Param("key")
	ttl := s.settings.CacheTTL
	if raw := c.Query("ttl"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			if secs, serr := time.ParseDuration(raw + "s"); serr == nil {
				parsed = secs
			} else {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid ttl %q", raw)})
				return
			}
		}
		ttl = parsed
	}

	cached, value, err := cache.Exec(c.Request.Context(),
		cache.CacheConfig{Key: deriveKey(key), Expires: ttl},
		s.cache,
		func(ctx context.Context) (map[string]any, error) {
			return s.compute(ctx, key)
		},
	)
	if err != nil {
		if errors.Is(err, cache.ErrBackendUnavailable) {
			s.log.WithError(err).Error("cache backend unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache backend unavailable"})
			return
		}
		s.log.WithError(err).Error("compute failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "compute failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":    key,
		"cached": cached,
		"value":  value,
	})
}

func (s *Server) submitJob(c *gin.Context) {
	var req struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = "sum"
	}

	job, err := s.pool.Submit(req.Type, req.Payload)
	if err != nil {
		if errors.Is(err, jobs.ErrUnknownType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown job type %q", req.Type)})
			return
		}
		s.log.WithError(err).Error("job submission failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "job submission failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

func (s *Server) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.pool.Snapshot()})
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.pool.Inspect(c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "job lookup failed"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// simulatedCompute stands in for a slow upstream call or calculation.
func (s *Server) simulatedCompute(ctx context.Context, key string) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(computeDelay):
	}
	return map[string]any{
		"key":      key,
		"ts":       time.Now().UTC().Format(time.RFC3339Nano),
		"computed": true,
	}, nil
}

// deriveKey maps the request identity to a fixed-width cache key. Hashing
// keeps arbitrary client input out of backend key space.
func deriveKey(identity string) string {
	return fmt.Sprintf("compute:%016x", xxhash.Sum64String(identity))
}
