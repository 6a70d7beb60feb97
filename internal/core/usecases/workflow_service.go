package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nirmalpoudel/terrawatt/internal/core/domain"
	"github.com/nirmalpoudel/terrawatt/internal/core/ports"
	"github.com/nirmalpoudel/terrawatt/internal/pkg/metrics"
)

// Fallback constants substituted when an upstream payload is missing a
// threaded numeric field. They match the analysis service's own defaults, so
// a degraded run stays consistent with what the service would assume anyway.
const (
	FallbackCapacityMW          = 100.0
	FallbackAnnualGenerationGWh = 200.0
)

var runSeq uint64

// WorkflowService runs the four-stage feasibility pipeline against the
// remote analysis service, threading each stage's output into the next
// stage's request. Screener and events are optional; a nil screener skips
// the pre-flight check and a nil publisher skips event emission.
type WorkflowService struct {
	analysis ports.AnalysisService
	screener *ScreeningService
	events   ports.EventPublisher
}

// NewWorkflowService creates a WorkflowService.
func NewWorkflowService(analysis ports.AnalysisService, screener *ScreeningService, events ports.EventPublisher) *WorkflowService {
	return &WorkflowService{analysis: analysis, screener: screener, events: events}
}

// Run executes SiteAnalysis → ResourceEstimation → CostEvaluation → Report
// for one area of interest. It always returns a non-nil run; inspect
// run.Status, run.FailedAt and run.Err for the outcome. Partial results
// collected before a failure remain on the run. Each call produces a fresh,
// independent run.
func (s *WorkflowService) Run(ctx context.Context, aoi domain.AreaOfInterest, params domain.FinancialParams) *domain.WorkflowRun {
	// IDs stay free of dots so they can be embedded in NATS subjects.
	run := &domain.WorkflowRun{
		ID:        fmt.Sprintf("run_%d_%d", time.Now().UnixNano(), atomic.AddUint64(&runSeq, 1)),
		Input:     aoi,
		Params:    params,
		Status:    domain.RunPending,
		StartedAt: time.Now().UTC(),
	}

	if err := aoi.Validate(); err != nil {
		run.Status = domain.RunFailed
		run.Err = err
		run.FinishedAt = time.Now().UTC()
		return run
	}

	// Pre-flight advisory gate. Flagged or unavailable checks warn; they
	// never block the run here, blocking is a caller decision.
	if s.screener != nil {
		screening := s.screener.Check(ctx, aoi.Coordinate)
		run.Screening = &screening
		switch screening.Outcome {
		case domain.OutcomeFlagged:
			run.AddWarning("site overlaps or borders protected areas: %s", strings.Join(screening.Names, ", "))
		case domain.OutcomeUnavailable:
			run.AddWarning("protected-area check unavailable; proceeding unscreened")
		}
	}

	run.Status = domain.RunRunning
	if s.events != nil {
		if err := s.events.PublishRunStarted(ctx, run); err != nil {
			slog.Warn("publish run started failed", "run", run.ID, "error", err)
		}
	}

	s.execute(ctx, run, []pipelineStage{
		{domain.StageSiteAnalysis, s.runSiteAnalysis},
		{domain.StageResourceEstimation, s.runResourceEstimation},
		{domain.StageCostEvaluation, s.runCostEvaluation},
		{domain.StageReport, s.runReport},
	})

	if s.events != nil {
		if err := s.events.PublishRunFinished(ctx, run); err != nil {
			slog.Warn("publish run finished failed", "run", run.ID, "error", err)
		}
	}
	return run
}

func (s *WorkflowService) runSiteAnalysis(ctx context.Context, run *domain.WorkflowRun, _ *runState) error {
	site, err := s.analysis.AnalyzeSite(ctx, run.Input)
	if err != nil {
		return err
	}
	run.Results.Site = site
	return nil
}

func (s *WorkflowService) runResourceEstimation(ctx context.Context, run *domain.WorkflowRun, state *runState) error {
	state.capacityMW = s.numericOrFallback(run, domain.StageSiteAnalysis, "estimated_capacity_mw",
		run.Results.Site.EstimatedCapacityMW, FallbackCapacityMW)

	res, err := s.analysis.EstimateResources(ctx, run.Input, state.capacityMW)
	if err != nil {
		return err
	}
	run.Results.Resources = res
	return nil
}

func (s *WorkflowService) runCostEvaluation(ctx context.Context, run *domain.WorkflowRun, state *runState) error {
	state.generationGWh = s.numericOrFallback(run, domain.StageResourceEstimation, "annual_generation_gwh",
		run.Results.Resources.AnnualGenerationGWh, FallbackAnnualGenerationGWh)

	costs, err := s.analysis.EvaluateCosts(ctx, s.projectData(run, state), run.Params)
	if err != nil {
		return err
	}
	run.Results.Costs = costs
	return nil
}

func (s *WorkflowService) runReport(ctx context.Context, run *domain.WorkflowRun, state *runState) error {
	project := s.projectData(run, state)
	if run.Results.Costs.Metrics != nil {
		project["financial_metrics"] = run.Results.Costs.Metrics
	} else {
		run.AddWarning("cost evaluation returned no financial metrics; report generated without them")
	}
	if run.Screening != nil && run.Screening.IsProtected() {
		project["protected_areas"] = run.Screening.Names
	}

	report, err := s.analysis.GenerateReport(ctx, project)
	if err != nil {
		return err
	}
	run.Results.Report = report
	return nil
}

// projectData assembles the accumulated project payload consumed by the
// cost-evaluation and report stages.
func (s *WorkflowService) projectData(run *domain.WorkflowRun, state *runState) map[string]any {
	return map[string]any{
		"project_type": run.Input.ProjectType,
		"location": map[string]any{
			"latitude":  run.Input.Coordinate.Lat,
			"longitude": run.Input.Coordinate.Lon,
			"area_km2":  run.Input.AreaKm2,
		},
		"capacity_mw":           state.capacityMW,
		"annual_generation_gwh": state.generationGWh,
	}
}

// numericOrFallback resolves a threaded dependency field, substituting the
// documented fallback when the upstream payload omitted it or produced a
// non-finite value. The substitution is surfaced as a run warning.
func (s *WorkflowService) numericOrFallback(run *domain.WorkflowRun, from domain.Stage, field string, value *float64, fallback float64) float64 {
	if value != nil && !math.IsNaN(*value) && !math.IsInf(*value, 0) {
		return *value
	}
	metrics.FallbacksApplied.WithLabelValues(string(from), field).Inc()
	slog.Warn("upstream data incomplete", "run", run.ID, "error", &domain.UpstreamDataError{Stage: from, Field: field})
	run.AddWarning("%s did not return a numeric %s; using default %.1f (downstream estimates are less precise)", from, field, fallback)
	return fallback
}

func (s *WorkflowService) publishStage(ctx context.Context, run *domain.WorkflowRun, stage domain.Stage) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishStageCompleted(ctx, run, stage); err != nil {
		slog.Warn("publish stage event failed", "run", run.ID, "stage", stage, "error", err)
	}
}
