// Benchmark tool for load-testing Gavel with a synthetic loan portfolio.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -loans 10000
//
// This tool:
//  1. Seeds a handful of realistic jurisdiction rules via POST /jurisdictions
//  2. Generates a synthetic portfolio of loan legal states
//  3. Sends each loan to POST /sol/evaluate with concurrent workers
//  4. Reports latency, throughput, and the resulting risk distribution
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// LoanRequest mirrors the /sol/evaluate request body.
type LoanRequest struct {
	LoanID            string         `json:"loanId"`
	JurisdictionCode  string         `json:"jurisdictionCode"`
	MaturityDate      *string        `json:"maturityDate,omitempty"`
	DefaultDate       *string        `json:"defaultDate,omitempty"`
	AccelerationDate  *string        `json:"accelerationDate,omitempty"`
	LastPaymentDate   *string        `json:"lastPaymentDate,omitempty"`
	ForeclosureStatus string         `json:"foreclosureStatus,omitempty"`
	TollingEvents     []TollingEvent `json:"tollingEvents,omitempty"`
}

type TollingEvent struct {
	Provision string  `json:"provision"`
	Start     string  `json:"start"`
	End       *string `json:"end,omitempty"`
}

// EvaluateResponse is the subset of the result the benchmark cares about.
type EvaluateResponse struct {
	LoanID              string `json:"loanId"`
	RiskLevel           string `json:"solRiskLevel"`
	DaysUntilExpiration int    `json:"daysUntilExpiration"`
	IsExpired           bool   `json:"isExpired"`
	Provisional         bool   `json:"provisional"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	High        int64
	Medium      int64
	Low         int64
	Expired     int64
	Provisional int64

	TotalProcessed int64
	TotalSkipped   int64 // 404/422 responses
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Gavel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	loans := flag.Int("loans", 10000, "Number of synthetic loans to evaluate")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seed := flag.Int64("seed", 42, "RNG seed for the synthetic portfolio")
	skipSeedRules := flag.Bool("skip-seed-rules", false, "Do not create jurisdiction rules first")
	verbose := flag.Bool("verbose", false, "Print each loan result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        GAVEL BENCHMARK - Synthetic Loan Portfolio             ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nGavel URL:   %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Loans:       %d\n", *loans)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Seed:        %d\n", *seed)
	fmt.Println()

	// Check Gavel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Gavel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Gavel is running:")
		fmt.Println("  cd gavel && go run cmd/gavel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Gavel is healthy")

	// Seed jurisdiction rules
	if !*skipSeedRules {
		if err := seedJurisdictions(*baseURL, *tenantID); err != nil {
			fmt.Printf("ERROR: Failed to seed jurisdiction rules: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Seeded %d jurisdiction rules\n", len(jurisdictions))
	}

	// Generate synthetic portfolio
	fmt.Printf("\nGenerating %d synthetic loans...\n", *loans)
	portfolio := generatePortfolio(*loans, *seed)
	fmt.Printf("✓ Generated %d loans across %d jurisdictions\n", len(portfolio), len(jurisdictions))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(portfolio, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// jurisdictions are the seed rules: a spread of period lengths, trigger
// precedence orders, and lien-extinguishment jurisdictions.
var jurisdictions = []map[string]any{
	{
		"code":              "CA",
		"name":              "California",
		"triggerEvents":     []string{"acceleration", "default", "maturity"},
		"solPeriods":        map[string]any{"foreclosureYears": 4, "noteYears": 4},
		"tollingProvisions": []string{"automaticStay", "militaryService"},
		"effectOfExpiration": map[string]any{
			"foreclosureBarred": true, "deficiencyBarred": true,
		},
		"milestoneTemplate": map[string]any{
			"nonJudicial": []map[string]any{
				{"sequence": 1, "name": "notice_of_default", "preferredDays": 30},
				{"sequence": 2, "name": "notice_of_sale", "preferredDays": 90},
				{"sequence": 3, "name": "trustee_sale", "preferredDays": 21},
			},
		},
		"enabled": true,
	},
	{
		"code":              "NY",
		"name":              "New York",
		"triggerEvents":     []string{"acceleration", "maturity"},
		"solPeriods":        map[string]any{"foreclosureYears": 6, "noteYears": 6},
		"tollingProvisions": []string{"automaticStay", "bankruptcyFiling", "debtAcknowledgment"},
		"effectOfExpiration": map[string]any{
			"lienExtinguished": true, "foreclosureBarred": true, "becomesUnsecured": true,
		},
		"milestoneTemplate": map[string]any{
			"judicial": []map[string]any{
				{"sequence": 1, "name": "complaint_filed", "preferredDays": 45},
				{"sequence": 2, "name": "judgment", "preferredDays": 270},
				{"sequence": 3, "name": "auction", "preferredDays": 120},
			},
		},
		"enabled": true,
	},
	{
		"code":              "TX",
		"name":              "Texas",
		"triggerEvents":     []string{"acceleration", "default"},
		"solPeriods":        map[string]any{"lienYears": 4, "foreclosureYears": 4},
		"tollingProvisions": []string{"automaticStay", "debtAcknowledgment"},
		"effectOfExpiration": map[string]any{
			"lienExtinguished": true, "foreclosureBarred": true,
		},
		"milestoneTemplate": map[string]any{
			"nonJudicial": []map[string]any{
				{"sequence": 1, "name": "notice_of_default", "preferredDays": 20},
				{"sequence": 2, "name": "notice_of_sale", "preferredDays": 21},
				{"sequence": 3, "name": "foreclosure_sale", "preferredDays": 30},
			},
		},
		"enabled": true,
	},
	{
		"code":              "FL",
		"name":              "Florida",
		"triggerEvents":     []string{"default", "lastPayment", "maturity"},
		"solPeriods":        map[string]any{"foreclosureYears": 5, "noteYears": 5, "deficiencyYears": 1},
		"tollingProvisions": []string{"automaticStay", "mentalIncapacity"},
		"effectOfExpiration": map[string]any{
			"foreclosureBarred": true, "deficiencyBarred": true,
		},
		"milestoneTemplate": map[string]any{
			"judicial": []map[string]any{
				{"sequence": 1, "name": "lis_pendens", "preferredDays": 15},
				{"sequence": 2, "name": "complaint_filed", "preferredDays": 30},
				{"sequence": 3, "name": "final_judgment", "preferredDays": 180},
				{"sequence": 4, "name": "auction", "preferredDays": 35},
			},
		},
		"enabled": true,
	},
}

func seedJurisdictions(baseURL, tenantID string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	for _, rule := range jurisdictions {
		body, err := json.Marshal(rule)
		if err != nil {
			return err
		}
		req, err := http.NewRequest(http.MethodPost, baseURL+"/jurisdictions", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", tenantID)

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("seeding %v: status %d", rule["code"], resp.StatusCode)
		}
	}
	return nil
}

// generatePortfolio builds loans with a realistic spread of trigger dates:
// some deep in default, some freshly accelerated, some with tolling events,
// and a few percent pointing at a jurisdiction with no rule.
func generatePortfolio(n int, seed int64) []LoanRequest {
	rng := rand.New(rand.NewSource(seed))
	now := time.Now()

	loans := make([]LoanRequest, 0, n)
	for i := 0; i < n; i++ {
		code := jurisdictions[rng.Intn(len(jurisdictions))]["code"].(string)
		if rng.Intn(100) < 2 {
			code = "ZZ" // No rule seeded; exercises the skip path
		}

		loan := LoanRequest{
			LoanID:           fmt.Sprintf("bench-%06d", i),
			JurisdictionCode: code,
		}

		// Default date between 9 years ago and yesterday
		defaultAge := time.Duration(rng.Intn(9*365)+1) * 24 * time.Hour
		loan.DefaultDate = dateStr(now.Add(-defaultAge))

		// Half the portfolio is accelerated some time after default
		if rng.Intn(2) == 0 {
			accel := now.Add(-defaultAge).AddDate(0, rng.Intn(12), 0)
			if accel.Before(now) {
				loan.AccelerationDate = dateStr(accel)
			}
		}

		// A fifth carries a tolling event; a quarter of those still open
		if rng.Intn(5) == 0 {
			start := now.Add(-time.Duration(rng.Intn(2*365)+30) * 24 * time.Hour)
			ev := TollingEvent{
				Provision: "automaticStay",
				Start:     *dateStr(start),
			}
			if rng.Intn(4) != 0 {
				ev.End = dateStr(start.AddDate(0, rng.Intn(10)+1, 0))
			}
			loan.TollingEvents = append(loan.TollingEvents, ev)
		}

		// A tenth are deficiency actions
		if rng.Intn(10) == 0 {
			loan.ForeclosureStatus = "deficiency"
		}

		loans = append(loans, loan)
	}
	return loans
}

func dateStr(t time.Time) *string {
	s := t.UTC().Format("2006-01-02")
	return &s
}

func runBenchmark(loans []LoanRequest, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan LoanRequest, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for loan := range work {
				start := time.Now()
				result, status, err := evaluateLoan(client, baseURL, tenantID, loan)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					if status == http.StatusNotFound || status == http.StatusUnprocessableEntity {
						atomic.AddInt64(&metrics.TotalSkipped, 1)
					} else {
						atomic.AddInt64(&metrics.TotalErrors, 1)
						if verbose {
							fmt.Printf("ERROR: %s -> %v\n", loan.LoanID, err)
						}
					}
					continue
				}

				switch result.RiskLevel {
				case "HIGH":
					atomic.AddInt64(&metrics.High, 1)
				case "MEDIUM":
					atomic.AddInt64(&metrics.Medium, 1)
				case "LOW":
					atomic.AddInt64(&metrics.Low, 1)
				}
				if result.IsExpired {
					atomic.AddInt64(&metrics.Expired, 1)
				}
				if result.Provisional {
					atomic.AddInt64(&metrics.Provisional, 1)
				}

				if verbose {
					fmt.Printf("%s | %s | Risk: %-6s | Days: %5d | Expired: %-5v | Provisional: %v\n",
						loan.LoanID,
						loan.JurisdictionCode,
						result.RiskLevel,
						result.DaysUntilExpiration,
						result.IsExpired,
						result.Provisional,
					)
				}
			}
		}()
	}

	for _, loan := range loans {
		work <- loan
	}
	close(work)

	wg.Wait()

	return metrics
}

func evaluateLoan(client *http.Client, baseURL, tenantID string, loan LoanRequest) (*EvaluateResponse, int, error) {
	body, err := json.Marshal(loan)
	if err != nil {
		return nil, 0, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/sol/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, err
	}

	return &result, resp.StatusCode, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 PORTFOLIO STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Skipped (no rule / not applicable): %d\n", m.TotalSkipped)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	computed := m.High + m.Medium + m.Low
	fmt.Printf("\n⚖️  RISK DISTRIBUTION\n")
	if computed > 0 {
		fmt.Printf("   HIGH:        %8d (%.2f%%)\n", m.High, 100*float64(m.High)/float64(computed))
		fmt.Printf("   MEDIUM:      %8d (%.2f%%)\n", m.Medium, 100*float64(m.Medium)/float64(computed))
		fmt.Printf("   LOW:         %8d (%.2f%%)\n", m.Low, 100*float64(m.Low)/float64(computed))
		fmt.Printf("   Expired:     %8d\n", m.Expired)
		fmt.Printf("   Provisional: %8d\n", m.Provisional)
	} else {
		fmt.Println("   No results computed")
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		lps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f loans/sec\n", lps)
	}

	fmt.Println()
}
