package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Browser     BrowserConfig
	Surface     SurfaceConfig
	Pool        PoolConfig
	Coordinator CoordinatorConfig
	Provider    ProviderConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Cache       CacheConfig
	Log         LogConfig
	Webhook     WebhookConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxSurfaces caps concurrently open worker tabs.
	MaxSurfaces int // default: 8

	// DefaultProxy is the proxy URL applied to the whole browser.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth enables anti-bot-detection evasions on every surface.
	Stealth bool // default: false
}

// SurfaceConfig controls the per-item worker surface lifecycle.
type SurfaceConfig struct {
	// ReadyTimeout is the deadline for a freshly created surface to signal
	// readiness before the item fails with SURFACE_LOAD_TIMEOUT.
	ReadyTimeout time.Duration // default: 20s

	// CorrelationTimeout is the deadline for a completion message to arrive
	// after injection before the item fails with CORRELATION_TIMEOUT.
	CorrelationTimeout time.Duration // default: 15s

	// NavigationTimeout is the max time for opening the tab and starting
	// navigation alone.
	NavigationTimeout time.Duration // default: 15s
}

// PoolConfig controls the bounded worker pool.
type PoolConfig struct {
	// Concurrency is the number of item pipelines in flight at once.
	Concurrency int // default: 4
}

// CoordinatorConfig controls batch-pair admission.
type CoordinatorConfig struct {
	// ParallelThreshold is the total item count at or below which the note
	// and email pools run concurrently; above it they run sequentially to
	// bound peak tab usage. A policy knob, not a derived limit.
	ParallelThreshold int // default: 5
}

// ProviderConfig controls list discovery on the case page.
type ProviderConfig struct {
	// NoteRowSelector and EmailRowSelector match listing rows in the
	// related-records tables. Validated with cascadia at startup.
	NoteRowSelector  string // default: "table.notes-list tr.record-row"
	EmailRowSelector string // default: "table.email-list tr.record-row"

	// HTTPTimeout is the deadline for the server-rendered listing fallback.
	HTTPTimeout time.Duration // default: 10s

	// HostMemoryTTL is how long a host's working fetch path is remembered.
	HostMemoryTTL time.Duration // default: 24h
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the timeline cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached timelines.
	MaxEntries int // default: 500
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// WebhookConfig controls job event delivery.
type WebhookConfig struct {
	// Secret signs webhook payloads with HMAC-SHA256 when non-empty.
	Secret string
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("CHRONICLE_HOST", "0.0.0.0"),
			Port: envIntOr("CHRONICLE_PORT", 8080),
			Mode: envOr("CHRONICLE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("CHRONICLE_HEADLESS", true),
			MaxSurfaces:  envIntOr("CHRONICLE_MAX_SURFACES", 8),
			DefaultProxy: os.Getenv("CHRONICLE_PROXY"),
			NoSandbox:    envBoolOr("CHRONICLE_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("CHRONICLE_BROWSER_BIN"),
			Stealth:      envBoolOr("CHRONICLE_STEALTH", false),
		},
		Surface: SurfaceConfig{
			ReadyTimeout:       envDurationOr("CHRONICLE_READY_TIMEOUT", 20*time.Second),
			CorrelationTimeout: envDurationOr("CHRONICLE_CORRELATION_TIMEOUT", 15*time.Second),
			NavigationTimeout:  envDurationOr("CHRONICLE_NAV_TIMEOUT", 15*time.Second),
		},
		Pool: PoolConfig{
			Concurrency: envIntOr("CHRONICLE_CONCURRENCY", 4),
		},
		Coordinator: CoordinatorConfig{
			ParallelThreshold: envIntOr("CHRONICLE_PARALLEL_THRESHOLD", 5),
		},
		Provider: ProviderConfig{
			NoteRowSelector:  envOr("CHRONICLE_NOTE_ROW_SELECTOR", "table.notes-list tr.record-row"),
			EmailRowSelector: envOr("CHRONICLE_EMAIL_ROW_SELECTOR", "table.email-list tr.record-row"),
			HTTPTimeout:      envDurationOr("CHRONICLE_HTTP_TIMEOUT", 10*time.Second),
			HostMemoryTTL:    envDurationOr("CHRONICLE_HOST_MEMORY_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("CHRONICLE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("CHRONICLE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("CHRONICLE_RATE_RPS", 2.0),
			Burst:             envIntOr("CHRONICLE_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("CHRONICLE_CACHE_MAX_ENTRIES", 500),
		},
		Log: LogConfig{
			Level:  envOr("CHRONICLE_LOG_LEVEL", "info"),
			Format: envOr("CHRONICLE_LOG_FORMAT", "json"),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("CHRONICLE_WEBHOOK_SECRET"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
