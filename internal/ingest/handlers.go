package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"harvester/internal/core/engine"
	"harvester/internal/core/export"
	"harvester/internal/core/job"
	"harvester/internal/logger"
	"harvester/internal/platform/tasks"

	"github.com/hibiken/asynq"
)

// Engine is the part of the engine the handlers drive.
type Engine interface {
	SubmitJob(ctx context.Context, sub engine.Submission) (string, error)
	SubmitBulkJob(ctx context.Context, sub engine.BulkSubmission) (string, error)
	ExportJSON(id string, w io.Writer) error
	ExportCSV(id string, w io.Writer) error
}

type Store interface {
	Save(ctx context.Context, name, contentType string, data []byte) (string, error)
}

type ExportRecorder interface {
	StoreExport(ctx context.Context, id, format, location string) error
}

type Handlers struct {
	engine  Engine
	store   Store
	exports ExportRecorder
	log     *logger.Logger
}

// NewHandlers builds the task handlers. store and exports may be nil, in
// which case export tasks are rejected.
func NewHandlers(e Engine, store Store, exports ExportRecorder) *Handlers {
	return &Handlers{engine: e, store: store, exports: exports, log: logger.New("Ingest")}
}

// Register wires every harvester task type onto m.
func (h *Handlers) Register(m *Mux) {
	m.HandleFunc(tasks.TypeJob, h.HandleJob)
	m.HandleFunc(tasks.TypeBulk, h.HandleBulk)
	m.HandleFunc(tasks.TypeExport, h.HandleExport)
}

func (h *Handlers) HandleJob(ctx context.Context, t *asynq.Task) error {
	var p tasks.JobPayload
	if err := tasks.Decode(t, &p); err != nil {
		return skip(err)
	}
	id, err := h.engine.SubmitJob(ctx, engine.Submission{
		ID:         p.ID,
		Kind:       job.Kind(p.Kind),
		Platform:   p.Platform,
		Target:     p.Target,
		Parameters: p.Parameters,
		Priority:   job.Priority(p.Priority),
		MaxRetries: p.MaxRetries,
	})
	return h.submitted("job", p.ID, id, err)
}

func (h *Handlers) HandleBulk(ctx context.Context, t *asynq.Task) error {
	var p tasks.BulkPayload
	if err := tasks.Decode(t, &p); err != nil {
		return skip(err)
	}
	id, err := h.engine.SubmitBulkJob(ctx, engine.BulkSubmission{
		ID:         p.ID,
		Name:       p.Name,
		Kind:       job.Kind(p.Kind),
		Platform:   p.Platform,
		Targets:    p.Targets,
		Parameters: p.Parameters,
		Priority:   job.Priority(p.Priority),
		MaxRetries: p.MaxRetries,
	})
	return h.submitted("bulk job", p.ID, id, err)
}

// submitted maps a submission outcome onto asynq semantics. A redelivered
// task whose id is already known counts as done.
func (h *Handlers) submitted(what, requested, id string, err error) error {
	switch {
	case err == nil:
		h.log.LogDebugf("Accepted %s %s", what, id)
		return nil
	case errors.Is(err, engine.ErrDuplicateJob):
		h.log.LogDebugf("Ignoring redelivered %s %s", what, requested)
		return nil
	case errors.Is(err, engine.ErrInvalidSubmission), errors.Is(err, engine.ErrTooManyTargets):
		h.log.LogWarnf("Rejected %s %s: %v", what, requested, err)
		return skip(err)
	}
	return err
}

func (h *Handlers) HandleExport(ctx context.Context, t *asynq.Task) error {
	var p tasks.ExportPayload
	if err := tasks.Decode(t, &p); err != nil {
		return skip(err)
	}
	if h.store == nil {
		return skip(errors.New("export storage is not configured"))
	}
	format := strings.ToLower(strings.TrimSpace(p.Format))

	var buf bytes.Buffer
	var err error
	switch format {
	case "json":
		err = h.engine.ExportJSON(p.ID, &buf)
	case "csv":
		err = h.engine.ExportCSV(p.ID, &buf)
	default:
		return skip(fmt.Errorf("unsupported export format %q", p.Format))
	}
	if errors.Is(err, engine.ErrJobNotFound) || errors.Is(err, engine.ErrBulkJobNotFound) {
		return skip(err)
	}
	if err != nil {
		return fmt.Errorf("render %s export of %s: %w", format, p.ID, err)
	}

	location, err := h.store.Save(ctx, export.Filename(p.ID, format), export.ContentType(format), buf.Bytes())
	if err != nil {
		return fmt.Errorf("save %s export of %s: %w", format, p.ID, err)
	}
	if h.exports != nil {
		if err := h.exports.StoreExport(ctx, p.ID, format, location); err != nil {
			h.log.LogWarnf("Export of %s saved at %s but not recorded: %v", p.ID, location, err)
		}
	}
	h.log.LogSuccessf("Exported %s as %s to %s", p.ID, format, location)
	return nil
}

func skip(err error) error { return fmt.Errorf("%w: %w", err, asynq.SkipRetry) }

func isSkip(err error) bool { return errors.Is(err, asynq.SkipRetry) }
