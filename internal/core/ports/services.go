package ports

import (
	"context"

	"github.com/nirmalpoudel/terrawatt/internal/core/domain"
)

// GeoQueryService answers spatial queries against a geospatial data source.
type GeoQueryService interface {
	// ContainingAreas returns protected-area features whose polygons contain
	// the given point.
	ContainingAreas(ctx context.Context, point domain.GeoPoint) ([]domain.GeoFeature, error)
	// NearbyAreas returns protected-area features within radiusKm of the
	// point, nearest first.
	NearbyAreas(ctx context.Context, point domain.GeoPoint, radiusKm float64) ([]domain.GeoFeature, error)
}

// AnalysisService is the remote feasibility analysis engine, consumed as an
// opaque JSON-over-HTTP collaborator.
type AnalysisService interface {
	AnalyzeSite(ctx context.Context, aoi domain.AreaOfInterest) (*domain.SiteAnalysis, error)
	// EstimateResources carries the capacity estimated by site analysis so
	// the remote estimator can size the system.
	EstimateResources(ctx context.Context, aoi domain.AreaOfInterest, capacityMW float64) (*domain.ResourceEstimate, error)
	EvaluateCosts(ctx context.Context, project map[string]any, params domain.FinancialParams) (*domain.CostEvaluation, error)
	GenerateReport(ctx context.Context, project map[string]any) (*domain.Report, error)
	SystemStatus(ctx context.Context) (map[string]any, error)
}

// EventPublisher publishes run lifecycle events to a message broker.
// Implementations must be safe to call from a single run goroutine.
type EventPublisher interface {
	PublishRunStarted(ctx context.Context, run *domain.WorkflowRun) error
	PublishStageCompleted(ctx context.Context, run *domain.WorkflowRun, stage domain.Stage) error
	PublishRunFinished(ctx context.Context, run *domain.WorkflowRun) error
}
