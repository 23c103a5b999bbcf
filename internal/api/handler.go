package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-lending/gavel/internal/batch"
	"github.com/opensource-lending/gavel/internal/domain"
	"github.com/opensource-lending/gavel/internal/policy"
	"github.com/opensource-lending/gavel/internal/repository"
	"github.com/opensource-lending/gavel/internal/sol"
	"github.com/opensource-lending/gavel/internal/stats"
	"github.com/opensource-lending/gavel/internal/timeline"
)

// dateLayout is the wire format for calendar dates. Legal deadlines are
// whole days; accepting timestamps here would invite zone-shift bugs.
const dateLayout = "2006-01-02"

// resultCacheTTL bounds how stale a cached SOL result read may be.
const resultCacheTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	ruleStore  domain.RuleStore
	calculator *sol.Calculator
	projector  *timeline.Projector
	policies   *policy.Engine
	runner     *batch.Runner
	stats      *stats.Service
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, ruleStore domain.RuleStore, calculator *sol.Calculator, projector *timeline.Projector, policies *policy.Engine, runner *batch.Runner, statsSvc *stats.Service, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		ruleStore:  ruleStore,
		calculator: calculator,
		projector:  projector,
		policies:   policies,
		runner:     runner,
		stats:      statsSvc,
		version:    version,
	}
}

// LoanStateRequest is the request body for POST /sol/evaluate and POST /loans.
// All dates are calendar dates in YYYY-MM-DD form.
type LoanStateRequest struct {
	LoanID           string `json:"loanId"`
	JurisdictionCode string `json:"jurisdictionCode"`

	MaturityDate     *string `json:"maturityDate,omitempty"`
	DefaultDate      *string `json:"defaultDate,omitempty"`
	AccelerationDate *string `json:"accelerationDate,omitempty"`
	LastPaymentDate  *string `json:"lastPaymentDate,omitempty"`
	ChargeOffDate    *string `json:"chargeOffDate,omitempty"`
	RecordingDate    *string `json:"recordingDate,omitempty"`

	ForeclosureForm   string `json:"foreclosureForm,omitempty"`
	ForeclosureStatus string `json:"foreclosureStatus,omitempty"`

	TollingEvents []TollingEventRequest `json:"tollingEvents,omitempty"`
}

// TollingEventRequest is one tolling interval. End is omitted while the
// condition is still open.
type TollingEventRequest struct {
	Provision string  `json:"provision"`
	Start     string  `json:"start"`
	End       *string `json:"end,omitempty"`
}

// ToLoanState converts the request to a domain loan state.
func (r *LoanStateRequest) ToLoanState() (*domain.LoanLegalState, error) {
	if r.LoanID == "" {
		return nil, fmt.Errorf("loanId is required")
	}
	if r.JurisdictionCode == "" {
		return nil, fmt.Errorf("jurisdictionCode is required")
	}

	loan := &domain.LoanLegalState{
		LoanID:            r.LoanID,
		JurisdictionCode:  r.JurisdictionCode,
		ForeclosureForm:   domain.ForeclosureForm(r.ForeclosureForm),
		ForeclosureStatus: domain.ForeclosureStatus(r.ForeclosureStatus),
	}

	for name, pair := range map[string]struct {
		src *string
		dst **time.Time
	}{
		"maturityDate":     {r.MaturityDate, &loan.MaturityDate},
		"defaultDate":      {r.DefaultDate, &loan.DefaultDate},
		"accelerationDate": {r.AccelerationDate, &loan.AccelerationDate},
		"lastPaymentDate":  {r.LastPaymentDate, &loan.LastPaymentDate},
		"chargeOffDate":    {r.ChargeOffDate, &loan.ChargeOffDate},
		"recordingDate":    {r.RecordingDate, &loan.RecordingDate},
	} {
		d, err := parseOptionalDate(pair.src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		*pair.dst = d
	}

	for i, ev := range r.TollingEvents {
		start, err := time.Parse(dateLayout, ev.Start)
		if err != nil {
			return nil, fmt.Errorf("tollingEvents[%d].start: %w", i, err)
		}
		end, err := parseOptionalDate(ev.End)
		if err != nil {
			return nil, fmt.Errorf("tollingEvents[%d].end: %w", i, err)
		}
		loan.TollingEvents = append(loan.TollingEvents, domain.TollingEvent{
			Provision: domain.TollingProvision(ev.Provision),
			Start:     start,
			End:       end,
		})
	}

	return loan, nil
}

// TimelineRequest is the request body for POST /timeline/project.
type TimelineRequest struct {
	LoanID           string            `json:"loanId"`
	JurisdictionCode string            `json:"jurisdictionCode"`
	ForeclosureForm  string            `json:"foreclosureForm"`
	FCStartDate      *string           `json:"fcStartDate,omitempty"`
	Completions      map[string]string `json:"completions,omitempty"`
}

// EvaluateSOL handles POST /sol/evaluate: computes, persists, and returns
// the SOL result for a single loan, synchronously.
func (h *Handler) EvaluateSOL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req LoanStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	loan, err := req.ToLoanState()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := h.ruleStore.Get(ctx, tenantID, loan.JurisdictionCode)
	if err != nil {
		writeCalcError(w, err)
		return
	}

	result, err := h.calculator.Calculate(loan, rule)
	if err != nil {
		writeCalcError(w, err)
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveLoanState(ctx, tenantID, loan); err != nil {
			slog.Error("failed to save loan state", "loan_id", loan.LoanID, "error", err)
		}
		if err := h.repo.UpsertSOLResult(ctx, tenantID, result); err != nil {
			slog.Error("failed to persist sol result", "loan_id", loan.LoanID, "error", err)
		}
	}
	if h.cache != nil {
		_ = h.cache.SetResult(ctx, tenantID, result.LoanID, result, resultCacheTTL)
	}

	writeJSON(w, http.StatusOK, result)
}

// GetSOLResult handles GET /sol/results/{loanId}.
func (h *Handler) GetSOLResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	loanID := chi.URLParam(r, "loanId")

	if h.cache != nil {
		if cached, err := h.cache.GetResult(ctx, tenantID, loanID); err == nil && cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	if h.repo == nil {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}

	result, err := h.repo.GetSOLResult(ctx, tenantID, loanID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load result")
		return
	}

	if h.cache != nil {
		_ = h.cache.SetResult(ctx, tenantID, loanID, result, resultCacheTTL)
	}

	writeJSON(w, http.StatusOK, result)
}

// ProjectTimeline handles POST /timeline/project. An empty entries list is a
// valid projection, not an error: it means the jurisdiction defines no
// template for the requested foreclosure form.
func (h *Handler) ProjectTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req TimelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if req.JurisdictionCode == "" {
		writeError(w, http.StatusBadRequest, "jurisdictionCode is required")
		return
	}

	rule, err := h.ruleStore.Get(ctx, tenantID, req.JurisdictionCode)
	if err != nil {
		writeCalcError(w, err)
		return
	}

	start, err := parseOptionalDate(req.FCStartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("fcStartDate: %v", err))
		return
	}

	actuals := &domain.ForeclosureActuals{
		LoanID:    req.LoanID,
		Form:      domain.ForeclosureForm(req.ForeclosureForm),
		StartDate: start,
	}
	if len(req.Completions) > 0 {
		actuals.Completions = make(map[string]time.Time, len(req.Completions))
		for name, value := range req.Completions {
			d, err := time.Parse(dateLayout, value)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("completions[%s]: %v", name, err))
				return
			}
			actuals.Completions[name] = d
		}
	}

	entries := h.projector.Project(actuals, rule)
	if entries == nil {
		entries = []domain.TimelineEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"loanId":  req.LoanID,
		"entries": entries,
	})
}

// SaveLoan handles POST /loans.
func (h *Handler) SaveLoan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req LoanStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	loan, err := req.ToLoanState()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.SaveLoanState(ctx, tenantID, loan); err != nil {
		slog.Error("failed to save loan state", "loan_id", loan.LoanID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save loan state")
		return
	}

	writeJSON(w, http.StatusCreated, loan)
}

// GetLoan handles GET /loans/{loanId}.
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	loanID := chi.URLParam(r, "loanId")

	loan, err := h.repo.GetLoanState(ctx, tenantID, loanID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "loan not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load loan")
		return
	}

	writeJSON(w, http.StatusOK, loan)
}

// ListJurisdictions handles GET /jurisdictions.
func (h *Handler) ListJurisdictions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	rules, err := h.repo.ListJurisdictionRules(ctx, tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jurisdictions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jurisdictions": rules,
		"count":         len(rules),
	})
}

// GetJurisdiction handles GET /jurisdictions/{code}.
func (h *Handler) GetJurisdiction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	code := chi.URLParam(r, "code")

	rule, err := h.ruleStore.Get(ctx, tenantID, code)
	if err != nil {
		writeCalcError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreateJurisdiction handles POST /jurisdictions: validates, persists, and
// installs any risk policy override, then drops the stale cache entry.
func (h *Handler) CreateJurisdiction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var rule domain.JurisdictionRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if err := rule.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if rule.RiskPolicyExpr != "" {
		if err := h.policies.ValidatePolicy(rule.RiskPolicyExpr); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.repo.SaveJurisdictionRule(ctx, tenantID, &rule); err != nil {
		slog.Error("failed to save jurisdiction rule", "code", rule.Code, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save jurisdiction rule")
		return
	}

	if err := h.policies.LoadOverride(rule.Code, rule.RiskPolicyExpr); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.cache != nil {
		_ = h.cache.Delete(ctx, tenantID, "rule:"+rule.Code)
	}

	writeJSON(w, http.StatusCreated, rule)
}

// ReloadJurisdictions handles POST /jurisdictions/reload: re-reads all rules
// from storage, reinstalls policy overrides, and invalidates cached copies.
func (h *Handler) ReloadJurisdictions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	rules, err := h.repo.ListJurisdictionRules(ctx, tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jurisdictions")
		return
	}

	if err := h.policies.LoadFromRules(rules); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.cache != nil {
		for _, rule := range rules {
			_ = h.cache.Delete(ctx, tenantID, "rule:"+rule.Code)
		}
	}

	slog.Info("jurisdiction rules reloaded",
		"tenant_id", tenantID,
		"count", len(rules),
		"policy_overrides", h.policies.OverrideCount(),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded": len(rules),
	})
}

// RunBatch handles POST /batch/run: synchronously recalculates the tenant's
// whole portfolio and returns the summary.
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	summary, err := h.runner.Run(ctx, tenantID)
	if err != nil {
		slog.Error("batch run failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "batch run failed")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// RiskStats handles GET /stats/risk.
func (h *Handler) RiskStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	report, err := h.stats.RiskDistribution(ctx, tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute risk distribution")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Health returns service health including dependency checks.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// writeCalcError maps the calculator's error taxonomy to HTTP statuses.
// All of these are per-loan, recoverable conditions.
func writeCalcError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrJurisdictionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotApplicable), errors.Is(err, domain.ErrNoPeriodDefined):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidRule):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "calculation failed")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD date: %w", err)
	}
	return &d, nil
}
