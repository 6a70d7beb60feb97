package usecases

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nirmalpoudel/terrawatt/internal/core/domain"
	"github.com/nirmalpoudel/terrawatt/internal/pkg/metrics"
	"github.com/nirmalpoudel/terrawatt/internal/pkg/telemetry"
)

// pipelineStage is one remote computation step. Its run function builds the
// stage request from the original input plus fields of earlier stage results
// accumulated on the run and in state.
type pipelineStage struct {
	name domain.Stage
	run  func(ctx context.Context, run *domain.WorkflowRun, state *runState) error
}

// runState carries threaded numeric fields between stages so a fallback
// substitution happens (and warns) exactly once per field.
type runState struct {
	capacityMW    float64
	generationGWh float64
}

// execute drives the ordered stages sequentially. A stage only starts when
// every prior stage completed; on failure the run keeps the results already
// collected and no later stage is attempted.
func (s *WorkflowService) execute(ctx context.Context, run *domain.WorkflowRun, stages []pipelineStage) {
	state := &runState{}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			s.fail(run, st.name, err)
			return
		}

		stageCtx, span := telemetry.Tracer().Start(ctx, "pipeline."+string(st.name))
		start := time.Now()
		err := st.run(stageCtx, run, state)
		metrics.StageDuration.WithLabelValues(string(st.name)).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.Bool("stage.ok", err == nil))
		span.End()

		if err != nil {
			metrics.StageFailures.WithLabelValues(string(st.name)).Inc()
			s.fail(run, st.name, err)
			return
		}

		slog.Info("stage complete", "run", run.ID, "stage", st.name, "took", time.Since(start))
		s.publishStage(ctx, run, st.name)
	}

	run.Status = domain.RunSucceeded
	run.FinishedAt = time.Now().UTC()
	metrics.RunsCompleted.WithLabelValues(string(run.Status)).Inc()
}

func (s *WorkflowService) fail(run *domain.WorkflowRun, stage domain.Stage, err error) {
	run.Status = domain.RunFailed
	run.FailedAt = stage
	run.Err = err
	run.FinishedAt = time.Now().UTC()
	metrics.RunsCompleted.WithLabelValues(string(run.Status)).Inc()
	slog.Error("run failed", "run", run.ID, "stage", stage, "error", err)
}
