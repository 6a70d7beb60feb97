// Package natsadapter publishes workflow run lifecycle events to NATS
// JetStream so external consumers (dashboards, notification hooks) can watch
// runs progress.
package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nirmalpoudel/terrawatt/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the run-events stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      "FEASIBILITY_RUNS",
		Subjects:  []string{"feasibility.runs.>"},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist with older settings.
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

type stageEvent struct {
	RunID string       `json:"run_id"`
	Stage domain.Stage `json:"stage"`
	Time  time.Time    `json:"time"`
}

func (p *Publisher) PublishRunStarted(ctx context.Context, run *domain.WorkflowRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("feasibility.runs."+run.ID+".started", data)
	return err
}

func (p *Publisher) PublishStageCompleted(ctx context.Context, run *domain.WorkflowRun, stage domain.Stage) error {
	data, err := json.Marshal(stageEvent{RunID: run.ID, Stage: stage, Time: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish("feasibility.runs."+run.ID+".stage", data)
	return err
}

func (p *Publisher) PublishRunFinished(ctx context.Context, run *domain.WorkflowRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("feasibility.runs."+run.ID+".finished", data)
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
