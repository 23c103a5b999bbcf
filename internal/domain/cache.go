package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetRule retrieves a cached jurisdiction rule.
	GetRule(ctx context.Context, tenantID string, code string) (*JurisdictionRule, error)

	// SetRule caches a jurisdiction rule for the rule store.
	SetRule(ctx context.Context, tenantID string, code string, rule *JurisdictionRule, ttl time.Duration) error

	// GetResult retrieves a cached SOL calculation result.
	GetResult(ctx context.Context, tenantID string, loanID string) (*SOLCalculationResult, error)

	// SetResult caches a SOL calculation result for read endpoints.
	SetResult(ctx context.Context, tenantID string, loanID string, result *SOLCalculationResult, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
