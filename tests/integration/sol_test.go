//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Gavel legal-deadline
// risk engine.
//
// These tests verify the COMPLETE evaluation pipeline:
//
//	Loan state → Jurisdiction rule → SOL expiration → Risk tier
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. LOAN STATE: The legal lifecycle dates of a loan (default, acceleration,
//    maturity, last payment) plus any tolling events.
//
// 2. JURISDICTION RULE: Per-state limitations law. Each rule has:
//   - Trigger events: which date starts the clock, in precedence order
//   - SOL periods: years per claim category (lien, foreclosure, note, deficiency)
//   - Tolling provisions: which pause events the state recognizes
//
// 3. RISK TIER: HIGH (expired or within 180 days), MEDIUM (within a year),
//    LOW (otherwise). Jurisdictions may override via a CEL policy expression.
//
// REQUIRED RULES (must be seeded via API before running tests):
//
// Run: go run ./cmd/benchmark -loans 0  (seeds CA/NY/TX/FL)
// or manually create via POST /jurisdictions.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("GAVEL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// ============================================================================
// API Request/Response Types (matching Gavel's API contract)
// ============================================================================

type EvaluateRequest struct {
	LoanID           string         `json:"loanId"`
	JurisdictionCode string         `json:"jurisdictionCode"`
	DefaultDate      *string        `json:"defaultDate,omitempty"`
	AccelerationDate *string        `json:"accelerationDate,omitempty"`
	MaturityDate     *string        `json:"maturityDate,omitempty"`
	LastPaymentDate  *string        `json:"lastPaymentDate,omitempty"`
	TollingEvents    []TollingEvent `json:"tollingEvents,omitempty"`
}

type TollingEvent struct {
	Provision string  `json:"provision"`
	Start     string  `json:"start"`
	End       *string `json:"end,omitempty"`
}

type EvaluateResponse struct {
	LoanID           string    `json:"loanId"`
	JurisdictionCode string    `json:"jurisdictionCode"`
	TriggerEvent     string    `json:"solTriggerEvent"`
	PeriodYears      int       `json:"solPeriodYears"`
	ExpirationDate   time.Time `json:"expirationDate"`
	DaysUntil        int       `json:"daysUntilExpiration"`
	IsExpired        bool      `json:"isExpired"`
	Provisional      bool      `json:"provisional"`
	RiskLevel        string    `json:"solRiskLevel"`
	CalculatedAt     time.Time `json:"calculatedAt"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func evaluate(t *testing.T, config TestConfig, req EvaluateRequest) EvaluateResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/sol/evaluate", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result EvaluateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}

	return result
}

func post(t *testing.T, config TestConfig, path string, req any, tenant bool) *http.Response {
	t.Helper()

	body, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest("POST", config.BaseURL+path, bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	if tenant {
		httpReq.Header.Set("X-Tenant-ID", config.TenantID)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func strPtr(s string) *string {
	return &s
}

func daysAgo(days int) *string {
	s := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
	return &s
}

// ============================================================================
// SCENARIO 1: Fresh Default (Low Risk)
// ============================================================================

func TestFreshDefault_LowRisk(t *testing.T) {
	/*
	   SCENARIO: A loan that defaulted one year ago in New York (6-year SOL)

	   EXPECTED BEHAVIOR:
	   - Trigger: default date (no acceleration present)
	   - Expiration: ~5 years out
	   - Risk: LOW (more than 365 days remaining)
	*/
	config := getTestConfig()

	result := evaluate(t, config, EvaluateRequest{
		LoanID:           "it-loan-fresh-001",
		JurisdictionCode: "NY",
		DefaultDate:      daysAgo(365),
	})

	if result.RiskLevel != "LOW" {
		t.Errorf("Expected LOW risk, got %s", result.RiskLevel)
	}
	if result.IsExpired {
		t.Error("Expected loan not expired")
	}
	if result.TriggerEvent != "default" {
		t.Errorf("Expected default trigger, got %s", result.TriggerEvent)
	}
	if result.DaysUntil < 4*365 {
		t.Errorf("Expected at least 4 years remaining, got %d days", result.DaysUntil)
	}

	t.Logf("✓ Fresh default: risk=%s, expires=%s, daysUntil=%d",
		result.RiskLevel, result.ExpirationDate.Format("2006-01-02"), result.DaysUntil)
}

// ============================================================================
// SCENARIO 2: Expired Statute (High Risk)
// ============================================================================

func TestExpiredStatute_HighRisk(t *testing.T) {
	/*
	   SCENARIO: A loan that defaulted 8 years ago in NY (6-year SOL)

	   EXPECTED BEHAVIOR:
	   - Expiration is ~2 years in the past
	   - IsExpired: true, DaysUntil negative
	   - Risk: HIGH regardless of policy override
	*/
	config := getTestConfig()

	result := evaluate(t, config, EvaluateRequest{
		LoanID:           "it-loan-expired-001",
		JurisdictionCode: "NY",
		DefaultDate:      daysAgo(8 * 365),
	})

	if !result.IsExpired {
		t.Error("Expected loan expired")
	}
	if result.DaysUntil >= 0 {
		t.Errorf("Expected negative daysUntil, got %d", result.DaysUntil)
	}
	if result.RiskLevel != "HIGH" {
		t.Errorf("Expected HIGH risk, got %s", result.RiskLevel)
	}

	t.Logf("✓ Expired statute: risk=%s, daysUntil=%d", result.RiskLevel, result.DaysUntil)
}

// ============================================================================
// SCENARIO 3: Trigger Precedence
// ============================================================================

func TestAccelerationBeatsDefault(t *testing.T) {
	/*
	   SCENARIO: Both acceleration and default dates are present.

	   EXPECTED BEHAVIOR:
	   - NY lists acceleration before default in its trigger order
	   - Acceleration wins even though the default happened earlier
	*/
	config := getTestConfig()

	result := evaluate(t, config, EvaluateRequest{
		LoanID:           "it-loan-accel-001",
		JurisdictionCode: "NY",
		DefaultDate:      daysAgo(3 * 365),
		AccelerationDate: daysAgo(2 * 365),
	})

	if result.TriggerEvent != "acceleration" {
		t.Errorf("Expected acceleration trigger, got %s", result.TriggerEvent)
	}

	t.Logf("✓ Trigger precedence: trigger=%s", result.TriggerEvent)
}

// ============================================================================
// SCENARIO 4: Tolling Extends the Deadline
// ============================================================================

func TestClosedTolling_ExtendsExpiration(t *testing.T) {
	/*
	   SCENARIO: Same default date evaluated with and without a closed
	   90-day bankruptcy stay.

	   EXPECTED BEHAVIOR:
	   - Tolled expiration is exactly 90 days later
	   - Result is NOT provisional (the interval is closed)
	*/
	config := getTestConfig()

	base := evaluate(t, config, EvaluateRequest{
		LoanID:           "it-loan-toll-base",
		JurisdictionCode: "NY",
		DefaultDate:      daysAgo(2 * 365),
	})

	tolled := evaluate(t, config, EvaluateRequest{
		LoanID:           "it-loan-toll-stay",
		JurisdictionCode: "NY",
		DefaultDate:      daysAgo(2 * 365),
		TollingEvents: []TollingEvent{
			{Provision: "automaticStay", Start: *daysAgo(400), End: daysAgo(310)},
		},
	})

	if tolled.Provisional {
		t.Error("Expected closed tolling not to be provisional")
	}

	shift := tolled.ExpirationDate.Sub(base.ExpirationDate)
	if shift != 90*24*time.Hour {
		t.Errorf("Expected expiration shifted by 90 days, got %v", shift)
	}

	t.Logf("✓ Closed tolling: expires=%s (shifted %v)",
		tolled.ExpirationDate.Format("2006-01-02"), shift)
}

func TestOpenTolling_Provisional(t *testing.T) {
	/*
	   SCENARIO: A bankruptcy stay with no end date.

	   EXPECTED BEHAVIOR:
	   - The open interval is measured to today
	   - Result is flagged provisional so it gets recomputed later
	*/
	config := getTestConfig()

	base := evaluate(t, config, EvaluateRequest{
		LoanID:           "it-loan-toll-open-base",
		JurisdictionCode: "NY",
		DefaultDate:      daysAgo(2 * 365),
	})

	result := evaluate(t, config, EvaluateRequest{
		LoanID:           "it-loan-toll-open",
		JurisdictionCode: "NY",
		DefaultDate:      daysAgo(2 * 365),
		TollingEvents: []TollingEvent{
			{Provision: "automaticStay", Start: *daysAgo(30)},
		},
	})

	if !result.Provisional {
		t.Error("Expected open tolling to be provisional")
	}
	shift := result.ExpirationDate.Sub(base.ExpirationDate)
	if shift != 30*24*time.Hour {
		t.Errorf("Expected expiration shifted by 30 days, got %v", shift)
	}

	t.Logf("✓ Open tolling: provisional=%v, shifted %v", result.Provisional, shift)
}

// ============================================================================
// SCENARIO 5: Result Persistence
// ============================================================================

func TestResultRetrievableAfterEvaluate(t *testing.T) {
	config := getTestConfig()

	evaluate(t, config, EvaluateRequest{
		LoanID:           "it-loan-persist-001",
		JurisdictionCode: "NY",
		DefaultDate:      daysAgo(365),
	})

	httpReq, _ := http.NewRequest("GET", config.BaseURL+"/sol/results/it-loan-persist-001", nil)
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 fetching stored result, got %d", resp.StatusCode)
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.LoanID != "it-loan-persist-001" {
		t.Errorf("Expected it-loan-persist-001, got %s", result.LoanID)
	}

	t.Logf("✓ Result persisted: loan=%s, risk=%s", result.LoanID, result.RiskLevel)
}

// ============================================================================
// SCENARIO 6: Input Validation
// ============================================================================

func TestUnknownJurisdiction_NotFound(t *testing.T) {
	config := getTestConfig()

	resp := post(t, config, "/sol/evaluate", EvaluateRequest{
		LoanID:           "it-loan-bad-jx",
		JurisdictionCode: "ZZ",
		DefaultDate:      daysAgo(365),
	}, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown jurisdiction, got %d", resp.StatusCode)
	}

	t.Logf("✓ Unknown jurisdiction → HTTP %d", resp.StatusCode)
}

func TestNoTriggerDates_Unprocessable(t *testing.T) {
	config := getTestConfig()

	resp := post(t, config, "/sol/evaluate", EvaluateRequest{
		LoanID:           "it-loan-no-dates",
		JurisdictionCode: "NY",
	}, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 when no trigger dates present, got %d", resp.StatusCode)
	}

	t.Logf("✓ No trigger dates → HTTP %d", resp.StatusCode)
}

func TestMissingTenantHeader_Error(t *testing.T) {
	config := getTestConfig()

	resp := post(t, config, "/sol/evaluate", EvaluateRequest{
		LoanID:           "it-loan-no-tenant",
		JurisdictionCode: "NY",
		DefaultDate:      daysAgo(365),
	}, false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing tenant, got %d", resp.StatusCode)
	}

	t.Logf("✓ Missing tenant → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 7: Timeline Projection
// ============================================================================

func TestTimelineProjection(t *testing.T) {
	/*
	   SCENARIO: Project a judicial foreclosure timeline in NY from a fixed
	   start date.

	   EXPECTED BEHAVIOR:
	   - Entries come back in benchmark sequence order
	   - Expected dates are monotonically increasing along the chain
	*/
	config := getTestConfig()

	resp := post(t, config, "/timeline/project", map[string]any{
		"loanId":           "it-loan-timeline-001",
		"jurisdictionCode": "NY",
		"foreclosureForm":  "judicial",
		"fcStartDate":      fmt.Sprintf("%d-01-01", time.Now().Year()),
	}, true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, string(body))
	}

	var projection struct {
		Entries []struct {
			Sequence int       `json:"sequence"`
			Name     string    `json:"milestoneName"`
			Expected time.Time `json:"expectedCompletionDate"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&projection); err != nil {
		t.Fatalf("Failed to decode projection: %v", err)
	}

	if len(projection.Entries) == 0 {
		t.Fatal("Expected at least one timeline entry")
	}
	for i := 1; i < len(projection.Entries); i++ {
		if !projection.Entries[i].Expected.After(projection.Entries[i-1].Expected) {
			t.Errorf("Expected dates to increase along the chain: %v then %v",
				projection.Entries[i-1].Expected, projection.Entries[i].Expected)
		}
	}

	t.Logf("✓ Timeline projected: %d milestones, first=%s",
		len(projection.Entries), projection.Entries[0].Name)
}
