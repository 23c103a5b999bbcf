// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-lending/gavel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveLoanState stores or replaces a loan's legal state with tenant isolation.
func (r *SQLRepository) SaveLoanState(ctx context.Context, tenantID string, loan *domain.LoanLegalState) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if loan.LoanID == "" {
		return fmt.Errorf("%w: loanId is required", ErrInvalidInput)
	}

	tolling, _ := json.Marshal(loan.TollingEvents)
	now := time.Now().UTC()

	query := `
		INSERT INTO loan_states (
			loan_id, tenant_id, jurisdiction_code,
			maturity_date, default_date, acceleration_date,
			last_payment_date, charge_off_date, recording_date,
			foreclosure_form, foreclosure_status, tolling_events,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (loan_id, tenant_id) DO UPDATE SET
			jurisdiction_code = excluded.jurisdiction_code,
			maturity_date = excluded.maturity_date,
			default_date = excluded.default_date,
			acceleration_date = excluded.acceleration_date,
			last_payment_date = excluded.last_payment_date,
			charge_off_date = excluded.charge_off_date,
			recording_date = excluded.recording_date,
			foreclosure_form = excluded.foreclosure_form,
			foreclosure_status = excluded.foreclosure_status,
			tolling_events = excluded.tolling_events,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		loan.LoanID, tenantID, loan.JurisdictionCode,
		nullTime(loan.MaturityDate), nullTime(loan.DefaultDate), nullTime(loan.AccelerationDate),
		nullTime(loan.LastPaymentDate), nullTime(loan.ChargeOffDate), nullTime(loan.RecordingDate),
		string(loan.ForeclosureForm), string(loan.ForeclosureStatus), string(tolling),
		now, now,
	)
	return err
}

// GetLoanState retrieves a loan's legal state by ID with tenant isolation.
func (r *SQLRepository) GetLoanState(ctx context.Context, tenantID string, loanID string) (*domain.LoanLegalState, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT loan_id, jurisdiction_code,
			   maturity_date, default_date, acceleration_date,
			   last_payment_date, charge_off_date, recording_date,
			   foreclosure_form, foreclosure_status, tolling_events
		FROM loan_states
		WHERE tenant_id = ? AND loan_id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, loanID)
	loan, err := scanLoanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return loan, err
}

// ListLoanStates retrieves all loan legal states for a tenant.
func (r *SQLRepository) ListLoanStates(ctx context.Context, tenantID string) ([]*domain.LoanLegalState, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT loan_id, jurisdiction_code,
			   maturity_date, default_date, acceleration_date,
			   last_payment_date, charge_off_date, recording_date,
			   foreclosure_form, foreclosure_status, tolling_events
		FROM loan_states
		WHERE tenant_id = ?
		ORDER BY loan_id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []*domain.LoanLegalState
	for rows.Next() {
		loan, err := scanLoanState(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// SaveJurisdictionRule stores or replaces a jurisdiction rule with tenant isolation.
func (r *SQLRepository) SaveJurisdictionRule(ctx context.Context, tenantID string, rule *domain.JurisdictionRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	periods, _ := json.Marshal(rule.SOLPeriods)
	triggers, _ := json.Marshal(rule.TriggerEvents)
	tolling, _ := json.Marshal(rule.TollingProvisions)
	effect, _ := json.Marshal(rule.ExpirationEffect)
	template, _ := json.Marshal(rule.MilestoneTemplate)

	query := `
		INSERT INTO jurisdiction_rules (
			code, tenant_id, name, sol_periods, trigger_events,
			tolling_provisions, expiration_effect, milestone_template,
			risk_policy_expr, enabled, version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code, tenant_id) DO UPDATE SET
			name = excluded.name,
			sol_periods = excluded.sol_periods,
			trigger_events = excluded.trigger_events,
			tolling_provisions = excluded.tolling_provisions,
			expiration_effect = excluded.expiration_effect,
			milestone_template = excluded.milestone_template,
			risk_policy_expr = excluded.risk_policy_expr,
			enabled = excluded.enabled,
			version = excluded.version,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.Code, tenantID, rule.Name,
		string(periods), string(triggers), string(tolling),
		string(effect), string(template),
		rule.RiskPolicyExpr, boolToInt(rule.Enabled), rule.Version,
		time.Now().UTC(),
	)
	return err
}

// GetJurisdictionRule retrieves a jurisdiction rule by code with tenant isolation.
func (r *SQLRepository) GetJurisdictionRule(ctx context.Context, tenantID string, code string) (*domain.JurisdictionRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT code, name, sol_periods, trigger_events, tolling_provisions,
			   expiration_effect, milestone_template, risk_policy_expr,
			   enabled, version, updated_at
		FROM jurisdiction_rules
		WHERE tenant_id = ? AND code = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, code)
	rule, err := scanJurisdictionRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrJurisdictionNotFound, code)
	}
	return rule, err
}

// ListJurisdictionRules retrieves all jurisdiction rules for a tenant.
func (r *SQLRepository) ListJurisdictionRules(ctx context.Context, tenantID string) ([]*domain.JurisdictionRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT code, name, sol_periods, trigger_events, tolling_provisions,
			   expiration_effect, milestone_template, risk_policy_expr,
			   enabled, version, updated_at
		FROM jurisdiction_rules
		WHERE tenant_id = ?
		ORDER BY code
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.JurisdictionRule
	for rows.Next() {
		rule, err := scanJurisdictionRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpsertSOLResult stores the current SOL result for a loan, replacing any
// prior result. Last write wins; no history is kept.
func (r *SQLRepository) UpsertSOLResult(ctx context.Context, tenantID string, result *domain.SOLCalculationResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if result.LoanID == "" {
		return fmt.Errorf("%w: loanId is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO sol_results (
			loan_id, tenant_id, jurisdiction_code, trigger_event,
			trigger_date, period_years, expiration_date,
			days_until_expiration, is_expired, provisional,
			risk_level, calculated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (loan_id, tenant_id) DO UPDATE SET
			jurisdiction_code = excluded.jurisdiction_code,
			trigger_event = excluded.trigger_event,
			trigger_date = excluded.trigger_date,
			period_years = excluded.period_years,
			expiration_date = excluded.expiration_date,
			days_until_expiration = excluded.days_until_expiration,
			is_expired = excluded.is_expired,
			provisional = excluded.provisional,
			risk_level = excluded.risk_level,
			calculated_at = excluded.calculated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		result.LoanID, tenantID, result.JurisdictionCode, string(result.TriggerEvent),
		result.TriggerDate, result.PeriodYears, result.ExpirationDate,
		result.DaysUntilExpiration, boolToInt(result.IsExpired), boolToInt(result.Provisional),
		string(result.RiskLevel), result.CalculatedAt,
	)
	return err
}

// GetSOLResult retrieves the current SOL result for a loan with tenant isolation.
func (r *SQLRepository) GetSOLResult(ctx context.Context, tenantID string, loanID string) (*domain.SOLCalculationResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT loan_id, jurisdiction_code, trigger_event, trigger_date,
			   period_years, expiration_date, days_until_expiration,
			   is_expired, provisional, risk_level, calculated_at
		FROM sol_results
		WHERE tenant_id = ? AND loan_id = ?
	`

	var result domain.SOLCalculationResult
	var trigger, risk string
	var expired, provisional int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, loanID).Scan(
		&result.LoanID, &result.JurisdictionCode, &trigger, &result.TriggerDate,
		&result.PeriodYears, &result.ExpirationDate, &result.DaysUntilExpiration,
		&expired, &provisional, &risk, &result.CalculatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	result.TriggerEvent = domain.TriggerEvent(trigger)
	result.RiskLevel = domain.RiskLevel(risk)
	result.IsExpired = expired != 0
	result.Provisional = provisional != 0
	result.TriggerDate = result.TriggerDate.UTC()
	result.ExpirationDate = result.ExpirationDate.UTC()
	result.CalculatedAt = result.CalculatedAt.UTC()

	return &result, nil
}

// RiskDistribution returns current result counts grouped by risk level.
func (r *SQLRepository) RiskDistribution(ctx context.Context, tenantID string) (map[domain.RiskLevel]int, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT risk_level, COUNT(*)
		FROM sol_results
		WHERE tenant_id = ?
		GROUP BY risk_level
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dist := make(map[domain.RiskLevel]int)
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, err
		}
		dist[domain.RiskLevel(level)] = count
	}
	return dist, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoanState(row rowScanner) (*domain.LoanLegalState, error) {
	var loan domain.LoanLegalState
	var maturity, deflt, accel, lastPay, chargeOff, recording sql.NullTime
	var form, status string
	var tolling sql.NullString

	err := row.Scan(
		&loan.LoanID, &loan.JurisdictionCode,
		&maturity, &deflt, &accel,
		&lastPay, &chargeOff, &recording,
		&form, &status, &tolling,
	)
	if err != nil {
		return nil, err
	}

	loan.MaturityDate = timePtr(maturity)
	loan.DefaultDate = timePtr(deflt)
	loan.AccelerationDate = timePtr(accel)
	loan.LastPaymentDate = timePtr(lastPay)
	loan.ChargeOffDate = timePtr(chargeOff)
	loan.RecordingDate = timePtr(recording)
	loan.ForeclosureForm = domain.ForeclosureForm(form)
	loan.ForeclosureStatus = domain.ForeclosureStatus(status)

	if tolling.Valid && tolling.String != "" {
		if err := json.Unmarshal([]byte(tolling.String), &loan.TollingEvents); err != nil {
			return nil, fmt.Errorf("loan %s: corrupt tolling events: %w", loan.LoanID, err)
		}
	}

	return &loan, nil
}

func scanJurisdictionRule(row rowScanner) (*domain.JurisdictionRule, error) {
	var rule domain.JurisdictionRule
	var periods, triggers, effect, template string
	var tolling, policyExpr sql.NullString
	var enabled int

	err := row.Scan(
		&rule.Code, &rule.Name, &periods, &triggers, &tolling,
		&effect, &template, &policyExpr,
		&enabled, &rule.Version, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(periods), &rule.SOLPeriods); err != nil {
		return nil, fmt.Errorf("jurisdiction %s: corrupt sol periods: %w", rule.Code, err)
	}
	if err := json.Unmarshal([]byte(triggers), &rule.TriggerEvents); err != nil {
		return nil, fmt.Errorf("jurisdiction %s: corrupt trigger events: %w", rule.Code, err)
	}
	if tolling.Valid && tolling.String != "" {
		if err := json.Unmarshal([]byte(tolling.String), &rule.TollingProvisions); err != nil {
			return nil, fmt.Errorf("jurisdiction %s: corrupt tolling provisions: %w", rule.Code, err)
		}
	}
	if err := json.Unmarshal([]byte(effect), &rule.ExpirationEffect); err != nil {
		return nil, fmt.Errorf("jurisdiction %s: corrupt expiration effect: %w", rule.Code, err)
	}
	if err := json.Unmarshal([]byte(template), &rule.MilestoneTemplate); err != nil {
		return nil, fmt.Errorf("jurisdiction %s: corrupt milestone template: %w", rule.Code, err)
	}
	if policyExpr.Valid {
		rule.RiskPolicyExpr = policyExpr.String
	}
	rule.Enabled = enabled != 0
	rule.UpdatedAt = rule.UpdatedAt.UTC()

	return &rule, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
