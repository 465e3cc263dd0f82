// Package ingest feeds asynq tasks into the engine.
package ingest

import (
	"context"

	"harvester/internal/telemetry"

	"github.com/hibiken/asynq"
)

type Mux struct{ mux *asynq.ServeMux }

func NewMux() *Mux { return &Mux{mux: asynq.NewServeMux()} }

// HandleFunc registers h for task type t and counts every outcome.
func (m *Mux) HandleFunc(t string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(t, func(ctx context.Context, task *asynq.Task) error {
		err := h(ctx, task)
		telemetry.IngestTasks.WithLabelValues(t, outcome(err)).Inc()
		return err
	})
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isSkip(err):
		return "rejected"
	}
	return "error"
}
