// Package policy provides the CEL-Go based risk-tier policy engine.
//
// The 180/365-day thresholds are operational policy rather than legal
// constants, so the tier mapping is expressed as a CEL policy that
// jurisdictions may override per rule. The default policy implements:
// HIGH when expired or within 180 days, MEDIUM within 365 days, LOW
// otherwise, with MEDIUM escalating to HIGH when expiration extinguishes
// the lien.
package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-lending/gavel/internal/domain"
	"github.com/opensource-lending/gavel/internal/sol"
)

// DefaultExpression is the built-in tier policy as a CEL expression.
const DefaultExpression = `
	is_expired || days_until <= 180
		? 'HIGH'
		: (days_until <= 365 ? (lien_extinguished ? 'HIGH' : 'MEDIUM') : 'LOW')
`

// Engine compiles and evaluates risk policy expressions. Policies are pure:
// the same input always yields the same tier.
type Engine struct {
	mu        sync.RWMutex
	env       *cel.Env
	def       cel.Program
	overrides map[string]cel.Program
}

// NewEngine creates a policy engine with the default tier policy loaded.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("days_until", cel.IntType),
		cel.Variable("is_expired", cel.BoolType),
		cel.Variable("lien_extinguished", cel.BoolType),
		cel.Variable("provisional", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{
		env:       env,
		overrides: make(map[string]cel.Program),
	}

	e.def, err = e.compile(DefaultExpression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile default risk policy: %w", err)
	}

	return e, nil
}

// ValidatePolicy compiles an expression without loading it.
func (e *Engine) ValidatePolicy(expr string) error {
	_, err := e.compile(expr)
	return err
}

// LoadOverride compiles and installs a per-jurisdiction policy override.
// An empty expression removes any existing override.
func (e *Engine) LoadOverride(jurisdictionCode, expr string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if expr == "" {
		delete(e.overrides, jurisdictionCode)
		return nil
	}

	prog, err := e.compile(expr)
	if err != nil {
		return fmt.Errorf("jurisdiction %s: %w", jurisdictionCode, err)
	}
	e.overrides[jurisdictionCode] = prog
	return nil
}

// LoadFromRules installs overrides for every rule carrying a policy
// expression, replacing the current override set.
func (e *Engine) LoadFromRules(rules []*domain.JurisdictionRule) error {
	overrides := make(map[string]cel.Program)
	for _, r := range rules {
		if r.RiskPolicyExpr == "" {
			continue
		}
		prog, err := e.compile(r.RiskPolicyExpr)
		if err != nil {
			return fmt.Errorf("jurisdiction %s: %w", r.Code, err)
		}
		overrides[r.Code] = prog
	}

	e.mu.Lock()
	e.overrides = overrides
	e.mu.Unlock()
	return nil
}

// OverrideCount returns the number of loaded per-jurisdiction overrides.
func (e *Engine) OverrideCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.overrides)
}

// Classify evaluates the jurisdiction's policy (or the default) against the
// computed horizon. Implements sol.Classifier.
func (e *Engine) Classify(jurisdictionCode string, input sol.RiskInput) (domain.RiskLevel, error) {
	e.mu.RLock()
	prog, ok := e.overrides[jurisdictionCode]
	if !ok {
		prog = e.def
	}
	e.mu.RUnlock()

	out, _, err := prog.Eval(map[string]any{
		"days_until":        int64(input.DaysUntilExpiration),
		"is_expired":        input.IsExpired,
		"lien_extinguished": input.LienExtinguished,
		"provisional":       input.Provisional,
	})
	if err != nil {
		return "", fmt.Errorf("policy evaluation failed: %w", err)
	}

	tier, ok := out.(types.String)
	if !ok {
		return "", fmt.Errorf("policy returned %T, want string", out)
	}

	switch level := domain.RiskLevel(tier); level {
	case domain.RiskHigh, domain.RiskMedium, domain.RiskLow:
		return level, nil
	default:
		return "", fmt.Errorf("policy returned unknown tier %q", tier)
	}
}

func (e *Engine) compile(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy: %w", issues.Err())
	}

	if ast.OutputType() != cel.StringType {
		return nil, fmt.Errorf("policy expression must return a tier string, got %s", ast.OutputType())
	}

	prog, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy program: %w", err)
	}
	return prog, nil
}
