package usecases

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nirmalpoudel/terrawatt/internal/core/domain"
	"github.com/nirmalpoudel/terrawatt/internal/core/ports"
	"github.com/nirmalpoudel/terrawatt/internal/pkg/metrics"
	"github.com/nirmalpoudel/terrawatt/internal/pkg/telemetry"
)

// DefaultProximityRadiusKm is the fallback radius for the proximity phase.
const DefaultProximityRadiusKm = 15.0

// nameTagPriority orders the tags a protected-area name is extracted from:
// localized name, then English name, then protection title, then operator.
var nameTagPriority = []string{"name", "name:en", "protection_title", "operator"}

// ScreeningService checks a coordinate for overlap with protected land.
// The check is advisory and fail-open: it never returns an error, degrading
// to OutcomeUnavailable when it cannot determine anything. It must not be
// the sole gate for a compliance-critical decision.
type ScreeningService struct {
	geo      ports.GeoQueryService
	radiusKm float64
}

// NewScreeningService creates a ScreeningService. radiusKm <= 0 selects the
// default proximity radius.
func NewScreeningService(geo ports.GeoQueryService, radiusKm float64) *ScreeningService {
	if radiusKm <= 0 {
		radiusKm = DefaultProximityRadiusKm
	}
	return &ScreeningService{geo: geo, radiusKm: radiusKm}
}

// Check screens a coordinate in two sequential phases: a containment query,
// then (only when containment yields no names) a radius query. Results are
// never cached; every call re-queries.
func (s *ScreeningService) Check(ctx context.Context, point domain.GeoPoint) domain.ScreeningResult {
	result := domain.ScreeningResult{CheckedAt: time.Now().UTC()}

	if !point.Valid() {
		slog.Warn("screening skipped: invalid coordinate", "lat", point.Lat, "lon", point.Lon)
		result.Outcome = domain.OutcomeUnavailable
		metrics.ScreeningOutcomes.WithLabelValues(string(result.Outcome)).Inc()
		return result
	}

	ctx, span := telemetry.Tracer().Start(ctx, "screening.check")
	defer span.End()

	var determined bool

	features, err := s.geo.ContainingAreas(ctx, point)
	if err != nil {
		slog.Warn("containment query failed, falling back to proximity", "error", err)
		metrics.ScreeningQueries.WithLabelValues("containment", "error").Inc()
	} else {
		determined = true
		metrics.ScreeningQueries.WithLabelValues("containment", "ok").Inc()
	}
	names := extractNames(features)

	// Very large protected polygons may not register as containing the exact
	// point representation, so an empty containment result always falls
	// through to a radius search.
	if len(names) == 0 {
		nearby, err := s.geo.NearbyAreas(ctx, point, s.radiusKm)
		if err != nil {
			slog.Warn("proximity query failed", "error", err, "radius_km", s.radiusKm)
			metrics.ScreeningQueries.WithLabelValues("proximity", "error").Inc()
		} else {
			determined = true
			metrics.ScreeningQueries.WithLabelValues("proximity", "ok").Inc()
		}
		names = extractNames(nearby)
	}

	switch {
	case len(names) > 0:
		result.Outcome = domain.OutcomeFlagged
		result.Names = names
	case determined:
		result.Outcome = domain.OutcomeClear
	default:
		result.Outcome = domain.OutcomeUnavailable
	}

	span.SetAttributes(
		attribute.String("screening.outcome", string(result.Outcome)),
		attribute.Int("screening.names", len(names)),
	)
	metrics.ScreeningOutcomes.WithLabelValues(string(result.Outcome)).Inc()
	slog.Debug("screening complete", "outcome", result.Outcome, "names", len(names))
	return result
}

// extractNames pulls a display name per feature by tag priority, skipping
// unnamed features and deduplicating while preserving first-seen order.
func extractNames(features []domain.GeoFeature) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, f := range features {
		name := featureName(f.Tags)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func featureName(tags map[string]string) string {
	for _, key := range nameTagPriority {
		if v := tags[key]; v != "" {
			return v
		}
	}
	return ""
}
