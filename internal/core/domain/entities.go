package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AreaOfInterest is the user-supplied site under evaluation. It is immutable
// once a workflow run starts.
type AreaOfInterest struct {
	Coordinate  GeoPoint `json:"coordinate"`
	AreaKm2     float64  `json:"area_km2"`
	ProjectType string   `json:"project_type"` // solar, wind or hybrid
}

// Validate checks the area of interest before any network call is made.
func (a AreaOfInterest) Validate() error {
	if !a.Coordinate.Valid() {
		return &ValidationError{Field: "coordinate", Reason: fmt.Sprintf("lat=%v lon=%v out of range", a.Coordinate.Lat, a.Coordinate.Lon)}
	}
	if a.AreaKm2 <= 0 {
		return &ValidationError{Field: "area_km2", Reason: fmt.Sprintf("must be positive, got %v", a.AreaKm2)}
	}
	switch a.ProjectType {
	case "solar", "wind", "hybrid":
	default:
		return &ValidationError{Field: "project_type", Reason: fmt.Sprintf("must be solar, wind or hybrid, got %q", a.ProjectType)}
	}
	return nil
}

// FinancialParams tune the cost-evaluation stage. Zero values mean "use the
// analysis service defaults".
type FinancialParams struct {
	ElectricityPriceUSDMWh float64 `json:"electricity_price_usd_mwh,omitempty"`
	ProjectLifetimeYears   int     `json:"project_lifetime,omitempty"`
	DiscountRate           float64 `json:"discount_rate,omitempty"`
}

// ScreeningOutcome is the tri-state result of a protected-area check.
type ScreeningOutcome string

const (
	// OutcomeClear means at least one query phase succeeded and found no
	// protected areas.
	OutcomeClear ScreeningOutcome = "clear"
	// OutcomeFlagged means one or more protected areas matched.
	OutcomeFlagged ScreeningOutcome = "flagged"
	// OutcomeUnavailable means the check could not be performed (invalid
	// input or both query phases failed). Distinct from Clear so callers can
	// tell "confirmed safe" apart from "could not determine".
	OutcomeUnavailable ScreeningOutcome = "check_unavailable"
)

// ScreeningResult is produced once per screening invocation and never
// mutated afterwards. Names preserve first-seen order and contain no
// duplicates.
type ScreeningResult struct {
	Outcome   ScreeningOutcome `json:"outcome"`
	Names     []string         `json:"names"`
	CheckedAt time.Time        `json:"checked_at"`
}

// IsProtected reports whether any protected area matched.
func (r ScreeningResult) IsProtected() bool { return len(r.Names) > 0 }

// Stage identifies one step of the analysis pipeline.
type Stage string

const (
	StageSiteAnalysis       Stage = "SiteAnalysis"
	StageResourceEstimation Stage = "ResourceEstimation"
	StageCostEvaluation     Stage = "CostEvaluation"
	StageReport             Stage = "Report"
)

// SiteAnalysis is the result of the site-analysis stage. Threaded fields are
// pointers so a missing field is distinguishable from zero.
type SiteAnalysis struct {
	SiteID              string          `json:"site_id"`
	EstimatedCapacityMW *float64        `json:"estimated_capacity_mw"`
	OverallScore        float64         `json:"overall_score"`
	EnvironmentalScore  float64         `json:"environmental_score"`
	Recommendations     []string        `json:"recommendations"`
	Risks               []string        `json:"risks"`
	Raw                 json.RawMessage `json:"-"`
}

// ResourceEstimate is the result of the resource-estimation stage.
type ResourceEstimate struct {
	ResourceType        string          `json:"resource_type"`
	AnnualGenerationGWh *float64        `json:"annual_generation_gwh"`
	CapacityFactor      *float64        `json:"capacity_factor"`
	PeakPowerMW         *float64        `json:"peak_power_mw"`
	Raw                 json.RawMessage `json:"-"`
}

// FinancialMetrics are the headline numbers of a cost evaluation.
type FinancialMetrics struct {
	NetPresentValueUSD   float64 `json:"net_present_value_usd"`
	InternalRateOfReturn float64 `json:"internal_rate_of_return"`
	PaybackPeriodYears   float64 `json:"payback_period_years"`
	LevelizedCostUSDPMWh float64 `json:"levelized_cost_of_energy_usd_mwh"`
	ReturnOnInvestment   float64 `json:"return_on_investment"`
	NetAnnualCashFlowUSD float64 `json:"net_annual_cash_flow_usd"`
}

// CostEvaluation is the result of the cost-evaluation stage.
type CostEvaluation struct {
	ProjectType      string            `json:"project_type"`
	CapacityMW       float64           `json:"capacity_mw"`
	TotalCapexUSD    float64           `json:"total_capex_usd"`
	AnnualOpexUSD    float64           `json:"annual_opex_usd"`
	AnnualRevenueUSD float64           `json:"annual_revenue_usd"`
	Metrics          *FinancialMetrics `json:"financial_metrics"`
	Raw              json.RawMessage   `json:"-"`
}

// Report is the result of the report-generation stage.
type Report struct {
	Content     string          `json:"report"`
	GeneratedAt string          `json:"generated_at"`
	Raw         json.RawMessage `json:"-"`
}

// StageResults accumulates completed stage payloads during one run. A nil
// entry means the stage never completed.
type StageResults struct {
	Site      *SiteAnalysis     `json:"site_analysis,omitempty"`
	Resources *ResourceEstimate `json:"resource_estimation,omitempty"`
	Costs     *CostEvaluation   `json:"cost_evaluation,omitempty"`
	Report    *Report           `json:"report,omitempty"`
}

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// WorkflowRun records one end-to-end pipeline execution. It is owned
// exclusively by the orchestrator while running and is terminal once
// Succeeded or Failed. Runs are never persisted or shared between calls.
type WorkflowRun struct {
	ID         string           `json:"id"`
	Input      AreaOfInterest   `json:"input"`
	Params     FinancialParams  `json:"financial_params"`
	Screening  *ScreeningResult `json:"screening,omitempty"`
	Results    StageResults     `json:"stage_results"`
	Status     RunStatus        `json:"status"`
	FailedAt   Stage            `json:"failed_at,omitempty"`
	Err        error            `json:"-"`
	Warnings   []string         `json:"warnings,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// AddWarning appends a soft warning (e.g. a fallback substitution) so the
// caller sees every precision tradeoff the run made.
func (r *WorkflowRun) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
