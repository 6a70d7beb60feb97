package usecases_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nirmalpoudel/terrawatt/internal/core/domain"
	"github.com/nirmalpoudel/terrawatt/internal/core/usecases"
)

// --- Mock AnalysisService ---

type mockAnalysis struct {
	analyzeFn  func(ctx context.Context, aoi domain.AreaOfInterest) (*domain.SiteAnalysis, error)
	estimateFn func(ctx context.Context, aoi domain.AreaOfInterest, capacityMW float64) (*domain.ResourceEstimate, error)
	costsFn    func(ctx context.Context, project map[string]any, params domain.FinancialParams) (*domain.CostEvaluation, error)
	reportFn   func(ctx context.Context, project map[string]any) (*domain.Report, error)

	analyzeCalls  int
	estimateCalls int
	costsCalls    int
	reportCalls   int
}

func (m *mockAnalysis) AnalyzeSite(ctx context.Context, aoi domain.AreaOfInterest) (*domain.SiteAnalysis, error) {
	m.analyzeCalls++
	if m.analyzeFn != nil {
		return m.analyzeFn(ctx, aoi)
	}
	return &domain.SiteAnalysis{EstimatedCapacityMW: f64(100)}, nil
}

func (m *mockAnalysis) EstimateResources(ctx context.Context, aoi domain.AreaOfInterest, capacityMW float64) (*domain.ResourceEstimate, error) {
	m.estimateCalls++
	if m.estimateFn != nil {
		return m.estimateFn(ctx, aoi, capacityMW)
	}
	return &domain.ResourceEstimate{AnnualGenerationGWh: f64(200)}, nil
}

func (m *mockAnalysis) EvaluateCosts(ctx context.Context, project map[string]any, params domain.FinancialParams) (*domain.CostEvaluation, error) {
	m.costsCalls++
	if m.costsFn != nil {
		return m.costsFn(ctx, project, params)
	}
	return &domain.CostEvaluation{Metrics: &domain.FinancialMetrics{}}, nil
}

func (m *mockAnalysis) GenerateReport(ctx context.Context, project map[string]any) (*domain.Report, error) {
	m.reportCalls++
	if m.reportFn != nil {
		return m.reportFn(ctx, project)
	}
	return &domain.Report{Content: "ok"}, nil
}

func (m *mockAnalysis) SystemStatus(ctx context.Context) (map[string]any, error) {
	return map[string]any{"status": "operational"}, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	started  int
	stages   []domain.Stage
	finished int
	err      error
}

func (m *mockPublisher) PublishRunStarted(ctx context.Context, run *domain.WorkflowRun) error {
	m.started++
	return m.err
}

func (m *mockPublisher) PublishStageCompleted(ctx context.Context, run *domain.WorkflowRun, stage domain.Stage) error {
	m.stages = append(m.stages, stage)
	return m.err
}

func (m *mockPublisher) PublishRunFinished(ctx context.Context, run *domain.WorkflowRun) error {
	m.finished++
	return m.err
}

func f64(v float64) *float64 { return &v }

func validAOI() domain.AreaOfInterest {
	return domain.AreaOfInterest{
		Coordinate:  domain.GeoPoint{Lat: 6.9271, Lon: 79.8612},
		AreaKm2:     100,
		ProjectType: "solar",
	}
}

// --- Tests ---

func TestWorkflow_FirstStageFailureKeepsNothing(t *testing.T) {
	analysis := &mockAnalysis{
		analyzeFn: func(ctx context.Context, aoi domain.AreaOfInterest) (*domain.SiteAnalysis, error) {
			return nil, &domain.NetworkError{URL: "http://analysis/site-analysis", Attempts: 3, LastStatus: 503}
		},
	}
	svc := usecases.NewWorkflowService(analysis, nil, nil)

	run := svc.Run(context.Background(), validAOI(), domain.FinancialParams{})
	if run.Status != domain.RunFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
	if run.FailedAt != domain.StageSiteAnalysis {
		t.Errorf("expected FailedAt=SiteAnalysis, got %s", run.FailedAt)
	}
	if run.Results.Site != nil || run.Results.Resources != nil || run.Results.Costs != nil || run.Results.Report != nil {
		t.Errorf("expected no stage results, got %+v", run.Results)
	}
	if analysis.estimateCalls+analysis.costsCalls+analysis.reportCalls != 0 {
		t.Error("downstream stages must not be attempted after a failure")
	}
	var netErr *domain.NetworkError
	if !errors.As(run.Err, &netErr) {
		t.Errorf("expected NetworkError, got %v", run.Err)
	}
}

func TestWorkflow_MidPipelineFailureKeepsPartialResults(t *testing.T) {
	analysis := &mockAnalysis{
		costsFn: func(ctx context.Context, project map[string]any, params domain.FinancialParams) (*domain.CostEvaluation, error) {
			return nil, &domain.NetworkError{URL: "http://analysis/cost-evaluation", Attempts: 1, LastStatus: 400}
		},
	}
	svc := usecases.NewWorkflowService(analysis, nil, nil)

	run := svc.Run(context.Background(), validAOI(), domain.FinancialParams{})
	if run.Status != domain.RunFailed || run.FailedAt != domain.StageCostEvaluation {
		t.Fatalf("expected failure at CostEvaluation, got status=%s failedAt=%s", run.Status, run.FailedAt)
	}
	if run.Results.Site == nil || run.Results.Resources == nil {
		t.Error("completed stage results must be retained on failure")
	}
	if run.Results.Costs != nil || run.Results.Report != nil {
		t.Error("failed and unattempted stages must have no results")
	}
	if analysis.reportCalls != 0 {
		t.Errorf("report stage dispatched %d times, want 0", analysis.reportCalls)
	}
}

func TestWorkflow_SuccessThreadsStageOutputs(t *testing.T) {
	analysis := &mockAnalysis{
		analyzeFn: func(ctx context.Context, aoi domain.AreaOfInterest) (*domain.SiteAnalysis, error) {
			if aoi.Coordinate.Lat != 6.9271 || aoi.Coordinate.Lon != 79.8612 {
				t.Errorf("unexpected coordinate %+v", aoi.Coordinate)
			}
			return &domain.SiteAnalysis{SiteID: "site_6.9271_79.8612", EstimatedCapacityMW: f64(142.5)}, nil
		},
		estimateFn: func(ctx context.Context, aoi domain.AreaOfInterest, capacityMW float64) (*domain.ResourceEstimate, error) {
			if capacityMW != 142.5 {
				t.Errorf("estimation must receive site capacity 142.5, got %v", capacityMW)
			}
			return &domain.ResourceEstimate{ResourceType: "solar", AnnualGenerationGWh: f64(321), CapacityFactor: f64(0.22)}, nil
		},
		costsFn: func(ctx context.Context, project map[string]any, params domain.FinancialParams) (*domain.CostEvaluation, error) {
			if got := project["capacity_mw"]; got != 142.5 {
				t.Errorf("cost evaluation must receive capacity 142.5, got %v", got)
			}
			if got := project["annual_generation_gwh"]; got != 321.0 {
				t.Errorf("cost evaluation must receive generation 321, got %v", got)
			}
			if params.DiscountRate != 0.08 {
				t.Errorf("financial params not threaded, got %+v", params)
			}
			return &domain.CostEvaluation{Metrics: &domain.FinancialMetrics{NetPresentValueUSD: 1.2e8}}, nil
		},
		reportFn: func(ctx context.Context, project map[string]any) (*domain.Report, error) {
			metrics, ok := project["financial_metrics"].(*domain.FinancialMetrics)
			if !ok || metrics.NetPresentValueUSD != 1.2e8 {
				t.Errorf("report must receive cost evaluation metrics, got %v", project["financial_metrics"])
			}
			return &domain.Report{Content: "Feasibility report"}, nil
		},
	}
	svc := usecases.NewWorkflowService(analysis, nil, nil)

	run := svc.Run(context.Background(), validAOI(), domain.FinancialParams{DiscountRate: 0.08})
	if run.Status != domain.RunSucceeded {
		t.Fatalf("expected succeeded, got %s (err=%v)", run.Status, run.Err)
	}
	if run.Results.Site == nil || run.Results.Resources == nil || run.Results.Costs == nil || run.Results.Report == nil {
		t.Fatalf("expected all four stage results, got %+v", run.Results)
	}
	if len(run.Warnings) != 0 {
		t.Errorf("complete payloads should produce no warnings, got %v", run.Warnings)
	}
	if run.FailedAt != "" {
		t.Errorf("succeeded run must not record a failed stage, got %s", run.FailedAt)
	}
}

func TestWorkflow_MissingCapacityFallsBackWithWarning(t *testing.T) {
	analysis := &mockAnalysis{
		analyzeFn: func(ctx context.Context, aoi domain.AreaOfInterest) (*domain.SiteAnalysis, error) {
			return &domain.SiteAnalysis{}, nil // no estimated_capacity_mw
		},
		estimateFn: func(ctx context.Context, aoi domain.AreaOfInterest, capacityMW float64) (*domain.ResourceEstimate, error) {
			if capacityMW != usecases.FallbackCapacityMW {
				t.Errorf("expected fallback capacity %v, got %v", usecases.FallbackCapacityMW, capacityMW)
			}
			return &domain.ResourceEstimate{AnnualGenerationGWh: f64(200)}, nil
		},
	}
	svc := usecases.NewWorkflowService(analysis, nil, nil)

	run := svc.Run(context.Background(), validAOI(), domain.FinancialParams{})
	if run.Status != domain.RunSucceeded {
		t.Fatalf("fallback must not fail the run, got %s (err=%v)", run.Status, run.Err)
	}
	found := false
	for _, w := range run.Warnings {
		if strings.Contains(w, "estimated_capacity_mw") {
			found = true
		}
	}
	if !found {
		t.Errorf("fallback substitution must surface a warning, got %v", run.Warnings)
	}
}

func TestWorkflow_InvalidInputFailsFast(t *testing.T) {
	analysis := &mockAnalysis{}
	svc := usecases.NewWorkflowService(analysis, nil, nil)

	aoi := validAOI()
	aoi.Coordinate.Lat = 95

	run := svc.Run(context.Background(), aoi, domain.FinancialParams{})
	if run.Status != domain.RunFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
	var valErr *domain.ValidationError
	if !errors.As(run.Err, &valErr) {
		t.Errorf("expected ValidationError, got %v", run.Err)
	}
	if analysis.analyzeCalls != 0 {
		t.Error("validation failure must never reach the network")
	}
	if run.FailedAt != "" {
		t.Errorf("validation failure is not a stage failure, got FailedAt=%s", run.FailedAt)
	}
}

func TestWorkflow_CancellationStopsFurtherStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	analysis := &mockAnalysis{
		analyzeFn: func(ctx context.Context, aoi domain.AreaOfInterest) (*domain.SiteAnalysis, error) {
			cancel() // caller abandons the run while stage 1 is in flight
			return &domain.SiteAnalysis{EstimatedCapacityMW: f64(100)}, nil
		},
	}
	svc := usecases.NewWorkflowService(analysis, nil, nil)

	run := svc.Run(ctx, validAOI(), domain.FinancialParams{})
	if run.Status != domain.RunFailed {
		t.Fatalf("expected failed run after cancellation, got %s", run.Status)
	}
	if run.FailedAt != domain.StageResourceEstimation {
		t.Errorf("expected cancellation before ResourceEstimation, got %s", run.FailedAt)
	}
	if run.Results.Site == nil {
		t.Error("stage completed before cancellation must keep its result")
	}
	if analysis.estimateCalls != 0 {
		t.Error("no further stage may start after cancellation")
	}
	if !errors.Is(run.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", run.Err)
	}
}

func TestWorkflow_PreflightScreeningRecordedAndAdvisory(t *testing.T) {
	geo := &mockGeoService{
		containingFn: func(ctx context.Context, p domain.GeoPoint) ([]domain.GeoFeature, error) {
			return named("Muthurajawela Marsh"), nil
		},
	}
	screener := usecases.NewScreeningService(geo, 0)
	analysis := &mockAnalysis{}
	svc := usecases.NewWorkflowService(analysis, screener, nil)

	run := svc.Run(context.Background(), validAOI(), domain.FinancialParams{})
	if run.Status != domain.RunSucceeded {
		t.Fatalf("flagged screening is advisory and must not block, got %s", run.Status)
	}
	if run.Screening == nil || run.Screening.Outcome != domain.OutcomeFlagged {
		t.Fatalf("expected flagged screening on run, got %+v", run.Screening)
	}
	found := false
	for _, w := range run.Warnings {
		if strings.Contains(w, "Muthurajawela Marsh") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected protected-area warning, got %v", run.Warnings)
	}
}

func TestWorkflow_PublishesLifecycleEvents(t *testing.T) {
	pub := &mockPublisher{}
	svc := usecases.NewWorkflowService(&mockAnalysis{}, nil, pub)

	run := svc.Run(context.Background(), validAOI(), domain.FinancialParams{})
	if run.Status != domain.RunSucceeded {
		t.Fatalf("expected succeeded, got %s", run.Status)
	}
	if pub.started != 1 || pub.finished != 1 {
		t.Errorf("expected 1 started and 1 finished event, got %d/%d", pub.started, pub.finished)
	}
	wantStages := []domain.Stage{
		domain.StageSiteAnalysis, domain.StageResourceEstimation,
		domain.StageCostEvaluation, domain.StageReport,
	}
	if len(pub.stages) != len(wantStages) {
		t.Fatalf("expected %d stage events, got %v", len(wantStages), pub.stages)
	}
	for i, st := range wantStages {
		if pub.stages[i] != st {
			t.Errorf("stage event %d: expected %s, got %s", i, st, pub.stages[i])
		}
	}
}

func TestWorkflow_PublisherFailureDoesNotAffectRun(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats down")}
	svc := usecases.NewWorkflowService(&mockAnalysis{}, nil, pub)

	run := svc.Run(context.Background(), validAOI(), domain.FinancialParams{})
	if run.Status != domain.RunSucceeded {
		t.Errorf("event publishing failures must not fail the run, got %s", run.Status)
	}
}

func TestWorkflow_RunsAreIndependent(t *testing.T) {
	svc := usecases.NewWorkflowService(&mockAnalysis{}, nil, nil)

	a := svc.Run(context.Background(), validAOI(), domain.FinancialParams{})
	b := svc.Run(context.Background(), validAOI(), domain.FinancialParams{})
	if a.ID == b.ID {
		t.Error("reruns must produce fresh run records")
	}
	if a == b {
		t.Error("runs must not share state")
	}
}
