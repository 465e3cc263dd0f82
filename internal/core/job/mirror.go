package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	rds "harvester/internal/platform/redis"
)

// ErrNotMirrored is returned when a snapshot is absent from Redis, either
// because it never existed or because its TTL ran out.
var ErrNotMirrored = errors.New("snapshot not found")

// Mirror publishes job and bulk job snapshots to Redis so processes other than
// the engine (the CLI, dashboards) can poll them. Every write also publishes
// "updated" on the key's channel.
type Mirror struct{ redis *rds.Service }

func NewMirror(redis *rds.Service) *Mirror { return &Mirror{redis: redis} }

func (m *Mirror) StoreJob(ctx context.Context, j Job) error {
	if err := m.redis.CacheSet(ctx, jobKey(j.ID), j, ttl(j.Status)); err != nil {
		return fmt.Errorf("mirror job %s: %w", j.ID, err)
	}
	_ = m.redis.Publish(ctx, jobKey(j.ID), "updated")
	return nil
}

func (m *Mirror) StoreBulk(ctx context.Context, b BulkJob) error {
	if err := m.redis.CacheSet(ctx, bulkKey(b.ID), b, ttl(b.Status)); err != nil {
		return fmt.Errorf("mirror bulk job %s: %w", b.ID, err)
	}
	_ = m.redis.Publish(ctx, bulkKey(b.ID), "updated")
	return nil
}

func (m *Mirror) GetJob(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := m.redis.CacheGet(ctx, jobKey(id), &j); err != nil {
		return nil, m.missing("job", id, err)
	}
	return &j, nil
}

func (m *Mirror) GetBulk(ctx context.Context, id string) (*BulkJob, error) {
	var b BulkJob
	if err := m.redis.CacheGet(ctx, bulkKey(id), &b); err != nil {
		return nil, m.missing("bulk job", id, err)
	}
	return &b, nil
}

// BulkRows assembles result rows for a bulk job from member snapshots. Members
// whose snapshot has expired are reported as pending with an explanatory error.
func (m *Mirror) BulkRows(ctx context.Context, id string) ([]ResultRow, error) {
	b, err := m.GetBulk(ctx, id)
	if err != nil {
		return nil, err
	}
	rows := make([]ResultRow, 0, len(b.MemberIDs))
	for _, memberID := range b.MemberIDs {
		j, err := m.GetJob(ctx, memberID)
		if errors.Is(err, ErrNotMirrored) {
			rows = append(rows, ResultRow{JobID: memberID, Status: StatusPending, Error: "snapshot expired"})
			continue
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, j.Row())
	}
	return rows, nil
}

// StoreExport records where a rendered export artifact was written.
func (m *Mirror) StoreExport(ctx context.Context, id, format, location string) error {
	return m.redis.CacheSet(ctx, exportKey(id, format), location, 24*time.Hour)
}

func (m *Mirror) ExportLocation(ctx context.Context, id, format string) (string, error) {
	var loc string
	if err := m.redis.CacheGet(ctx, exportKey(id, format), &loc); err != nil {
		return "", m.missing(format+" export", id, err)
	}
	return loc, nil
}

func (m *Mirror) missing(what, id string, err error) error {
	if errors.Is(err, rds.ErrCacheMiss) {
		return fmt.Errorf("%w: %s %s", ErrNotMirrored, what, id)
	}
	return fmt.Errorf("read %s %s: %w", what, id, err)
}

func jobKey(id string) string            { return "job:" + id }
func bulkKey(id string) string           { return "bulk:" + id }
func exportKey(id, format string) string { return "export:" + id + ":" + format }

func ttl(s Status) time.Duration {
	if s.IsTerminal() {
		return time.Hour
	}
	return 10 * time.Minute
}
