// quenchd serves the read-through cache and async job queue demo API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quenchd/quench/cache"
	"github.com/quenchd/quench/config"
	"github.com/quenchd/quench/jobs"
	"github.com/quenchd/quench/server"
)

var rootCmd = &cobra.Command{
	Use:   "quenchd",
	Short: "Read-through cache and async job queue demo service",
	Long: `quenchd exposes a small HTTP API over two system-design primitives:
a TTL cache with swappable backends (in-memory LRU, Redis, or both tiered)
and an asynchronous job queue drained by a fixed worker pool.

All configuration comes from APP_-prefixed environment variables.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if parsed, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	}
	return log
}

// newCache builds the configured backend. The choice is made once, here;
// every call site downstream sees only the cache.Cache interface.
func newCache(ctx context.Context, settings config.Settings, log logrus.FieldLogger) (cache.Cache, error) {
	newRedisTier := func() (cache.Cache, error) {
		opts, err := redis.ParseURL(settings.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if _, err := client.Ping(ctx).Result(); err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return cache.NewRedis(ctx, client, cache.WithPrefix("quench")), nil
	}

	switch settings.CacheBackend {
	case config.BackendMemory:
		return cache.NewInMemory(ctx, cache.WithMaxItems(settings.CacheMaxItems))
	case config.BackendRedis:
		return newRedisTier()
	case config.BackendTiered:
		l1, err := cache.NewInMemory(ctx, cache.WithMaxItems(settings.CacheMaxItems))
		if err != nil {
			return nil, err
		}
		l2, err := newRedisTier()
		if err != nil {
			return nil, err
		}
		return cache.NewTiered(l1, l2), nil
	default:
		// Unreachable: config.Load validated the selector.
		return nil, fmt.Errorf("unknown cache backend %q", settings.CacheBackend)
	}
}

func run(ctx context.Context) error {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(settings.LogLevel)
	log.WithField("settings", settings.String()).Info("starting quenchd")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := newCache(ctx, settings, log)
	if err != nil {
		return err
	}
	defer c.Close()

	pool, err := jobs.NewPool(jobs.Config{Workers: settings.Workers}, log)
	if err != nil {
		return err
	}
	pool.Start()

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(c, pool, settings, log, nil)
	httpServer := &http.Server{
		Addr:         settings.ServerAddr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.WithField("addr", settings.ServerAddr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown did not finish cleanly")
		}
		pool.Stop(shutdownCtx)
		return nil
	})

	return group.Wait()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
