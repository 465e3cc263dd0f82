// Package cli implements harvestctl, which queues work for a running harvester
// daemon and reads job snapshots back from the Redis mirror.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"harvester/internal/core/engine"
	"harvester/internal/core/job"
	"harvester/internal/core/proxy"
	"harvester/internal/platform/tasks"
)

// Submitter queues submissions for the daemon; *tasks.Client implements it.
type Submitter interface {
	EnqueueJob(ctx context.Context, p tasks.JobPayload) (string, error)
	EnqueueBulk(ctx context.Context, p tasks.BulkPayload) (string, error)
	EnqueueExport(ctx context.Context, p tasks.ExportPayload) error
}

// Reader reads mirrored snapshots; *job.Mirror implements it.
type Reader interface {
	GetJob(ctx context.Context, id string) (*job.Job, error)
	GetBulk(ctx context.Context, id string) (*job.BulkJob, error)
	BulkRows(ctx context.Context, id string) ([]job.ResultRow, error)
	ExportLocation(ctx context.Context, id, format string) (string, error)
}

// Ops reads live engine state; *APIClient implements it.
type Ops interface {
	Stats(ctx context.Context) (engine.Stats, error)
	Proxies(ctx context.Context) (proxy.Stats, error)
}

type Env struct {
	Tasks Submitter
	Jobs  Reader
	Ops   Ops
	Out   *Output
	// PollInterval paces --wait loops.
	PollInterval time.Duration
}

// EnvFunc builds the environment lazily so --help never dials Redis.
type EnvFunc func() (*Env, error)

// poll calls check until it reports done, an error, or timeout elapses.
// ErrNotMirrored counts as "not yet" since the daemon may not have ingested
// the task.
func (e *Env) poll(ctx context.Context, timeout time.Duration, check func(context.Context) (bool, error)) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	interval := e.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := check(ctx)
		if err != nil && !errors.Is(err, job.ErrNotMirrored) {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up waiting: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
