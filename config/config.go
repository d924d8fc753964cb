// Package config loads service settings from APP_-prefixed environment
// variables and validates them before anything is constructed. Invalid
// configuration is fatal at startup, never discovered mid-request.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// ErrInvalid marks configuration validation failures. Test with errors.Is.
var ErrInvalid = errors.New("config: invalid configuration")

// Cache backend selectors.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendTiered = "tiered"
)

// Settings is everything the service needs at construction time. Values
// only — parsing and validation happen here, the consuming packages trust
// what they receive.
type Settings struct {
	ServerAddr string

	CacheBackend  string
	CacheTTL      time.Duration
	CacheMaxItems int
	RedisURL      string

	Workers int

	EnforceHTTPS bool
	HSTSMaxAge   int
	EnableCORS   bool

	LogLevel string
}

// Defaults mirror a sensible single-process development setup.
func defaults() Settings {
	return Settings{
		ServerAddr:    ":8080",
		CacheBackend:  BackendMemory,
		CacheTTL:      60 * time.Second,
		CacheMaxItems: 1024,
		Workers:       2,
		EnforceHTTPS:  true,
		HSTSMaxAge:    31536000, // one year
		EnableCORS:    true,
		LogLevel:      "info",
	}
}

// Load reads settings from the environment (APP_ prefix) and validates
// them.
func Load() (Settings, error) {
	s := defaults()

	s.ServerAddr = getenv("APP_SERVER_ADDR", s.ServerAddr)
	s.CacheBackend = getenv("APP_CACHE_BACKEND", s.CacheBackend)
	s.RedisURL = getenv("APP_REDIS_URL", s.RedisURL)
	s.LogLevel = getenv("APP_LOG_LEVEL", s.LogLevel)

	var err error
	if s.CacheTTL, err = getenvDuration("APP_CACHE_TTL", s.CacheTTL); err != nil {
		return Settings{}, err
	}
	if s.CacheMaxItems, err = getenvInt("APP_CACHE_MAX_ITEMS", s.CacheMaxItems); err != nil {
		return Settings{}, err
	}
	if s.Workers, err = getenvInt("APP_WORKERS", s.Workers); err != nil {
		return Settings{}, err
	}
	if s.EnforceHTTPS, err = getenvBool("APP_ENFORCE_HTTPS", s.EnforceHTTPS); err != nil {
		return Settings{}, err
	}
	if s.HSTSMaxAge, err = getenvInt("APP_HSTS_MAX_AGE", s.HSTSMaxAge); err != nil {
		return Settings{}, err
	}
	if s.EnableCORS, err = getenvBool("APP_ENABLE_CORS", s.EnableCORS); err != nil {
		return Settings{}, err
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate enforces the construction-time invariants of the core:
// a usable worker count, a bounded cache, a positive TTL, and a reachable
// address for any backend that needs one.
func (s Settings) Validate() error {
	if s.ServerAddr == "" {
		return errors.Mark(errors.New("server address must not be empty"), ErrInvalid)
	}
	switch s.CacheBackend {
	case BackendMemory, BackendRedis, BackendTiered:
	default:
		return errors.Mark(
			errors.Newf("unknown cache backend %q (want %s, %s or %s)",
				s.CacheBackend, BackendMemory, BackendRedis, BackendTiered),
			ErrInvalid)
	}
	if (s.CacheBackend == BackendRedis || s.CacheBackend == BackendTiered) && s.RedisURL == "" {
		return errors.Mark(
			errors.Newf("cache backend %q requires APP_REDIS_URL", s.CacheBackend),
			ErrInvalid)
	}
	if s.CacheTTL <= 0 {
		return errors.Mark(errors.Newf("cache TTL must be positive, got %s", s.CacheTTL), ErrInvalid)
	}
	if s.CacheMaxItems < 1 {
		return errors.Mark(errors.Newf("cache max items must be at least 1, got %d", s.CacheMaxItems), ErrInvalid)
	}
	if s.Workers < 1 {
		return errors.Mark(errors.Newf("worker count must be at least 1, got %d", s.Workers), ErrInvalid)
	}
	if s.HSTSMaxAge < 0 {
		return errors.Mark(errors.Newf("HSTS max age must not be negative, got %d", s.HSTSMaxAge), ErrInvalid)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "%s must be an integer, got %q", key, v), ErrInvalid)
	}
	return n, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Mark(errors.Wrapf(err, "%s must be a boolean, got %q", key, v), ErrInvalid)
	}
	return b, nil
}

// getenvDuration accepts both human-friendly forms ("90s", "2m30s", "1h")
// and bare integers, which are taken as seconds.
func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := str2duration.ParseDuration(v)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "%s must be a duration, got %q", key, v), ErrInvalid)
	}
	return d, nil
}

// String renders the settings for startup logging, one line.
func (s Settings) String() string {
	return fmt.Sprintf("addr=%s backend=%s ttl=%s max_items=%d workers=%d enforce_https=%t",
		s.ServerAddr, s.CacheBackend, s.CacheTTL, s.CacheMaxItems, s.Workers, s.EnforceHTTPS)
}
