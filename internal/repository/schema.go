package repository

// Schema definitions for the Gavel database.
// Compatible with both SQLite and PostgreSQL.

const schemaLoanStates = `
CREATE TABLE IF NOT EXISTS loan_states (
    loan_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    jurisdiction_code TEXT NOT NULL,
    maturity_date TIMESTAMP,
    default_date TIMESTAMP,
    acceleration_date TIMESTAMP,
    last_payment_date TIMESTAMP,
    charge_off_date TIMESTAMP,
    recording_date TIMESTAMP,
    foreclosure_form TEXT,
    foreclosure_status TEXT,
    tolling_events TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (loan_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_loan_states_tenant ON loan_states(tenant_id);
CREATE INDEX IF NOT EXISTS idx_loan_states_jurisdiction ON loan_states(tenant_id, jurisdiction_code);
`

const schemaJurisdictionRules = `
CREATE TABLE IF NOT EXISTS jurisdiction_rules (
    code TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    sol_periods TEXT NOT NULL,
    trigger_events TEXT NOT NULL,
    tolling_provisions TEXT,
    expiration_effect TEXT NOT NULL,
    milestone_template TEXT NOT NULL,
    risk_policy_expr TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    version TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (code, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_jurisdiction_rules_tenant ON jurisdiction_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_jurisdiction_rules_enabled ON jurisdiction_rules(tenant_id, enabled);
`

// sol_results holds exactly one current row per loan. Batch and on-demand
// recalculation upsert with last-write-wins semantics; no history is kept.
const schemaSOLResults = `
CREATE TABLE IF NOT EXISTS sol_results (
    loan_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    jurisdiction_code TEXT NOT NULL,
    trigger_event TEXT NOT NULL,
    trigger_date TIMESTAMP NOT NULL,
    period_years INTEGER NOT NULL,
    expiration_date TIMESTAMP NOT NULL,
    days_until_expiration INTEGER NOT NULL,
    is_expired INTEGER NOT NULL,
    provisional INTEGER NOT NULL DEFAULT 0,
    risk_level TEXT NOT NULL,
    calculated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (loan_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_sol_results_tenant ON sol_results(tenant_id);
CREATE INDEX IF NOT EXISTS idx_sol_results_risk ON sol_results(tenant_id, risk_level);
CREATE INDEX IF NOT EXISTS idx_sol_results_expiration ON sol_results(tenant_id, expiration_date);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaLoanStates,
		schemaJurisdictionRules,
		schemaSOLResults,
	}
}
