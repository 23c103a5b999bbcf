package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Loan legal state operations
	SaveLoanState(ctx context.Context, tenantID string, loan *LoanLegalState) error
	GetLoanState(ctx context.Context, tenantID string, loanID string) (*LoanLegalState, error)
	ListLoanStates(ctx context.Context, tenantID string) ([]*LoanLegalState, error)

	// Jurisdiction rule operations
	SaveJurisdictionRule(ctx context.Context, tenantID string, rule *JurisdictionRule) error
	GetJurisdictionRule(ctx context.Context, tenantID string, code string) (*JurisdictionRule, error)
	ListJurisdictionRules(ctx context.Context, tenantID string) ([]*JurisdictionRule, error)

	// SOL results: one current row per loan, last write wins.
	UpsertSOLResult(ctx context.Context, tenantID string, result *SOLCalculationResult) error
	GetSOLResult(ctx context.Context, tenantID string, loanID string) (*SOLCalculationResult, error)

	// RiskDistribution returns result counts grouped by risk level.
	RiskDistribution(ctx context.Context, tenantID string) (map[RiskLevel]int, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
