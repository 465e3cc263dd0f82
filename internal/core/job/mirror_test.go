package job

import (
	"context"
	"testing"
	"time"

	rds "harvester/internal/platform/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMirror(t *testing.T) (*Mirror, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	svc, err := rds.New(rds.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return NewMirror(svc), mr
}

func TestMirrorJobSnapshot(t *testing.T) {
	m, mr := newTestMirror(t)
	ctx := context.Background()

	j := newTestJob(1)
	require.NoError(t, m.StoreJob(ctx, j.Clone()))
	assert.Equal(t, 10*time.Minute, mr.TTL("job:"+j.ID))

	require.NoError(t, j.MarkRunning(t0))
	require.NoError(t, j.MarkCompleted(Result{"title": "hi"}, t0))
	require.NoError(t, m.StoreJob(ctx, j.Clone()))
	assert.Equal(t, time.Hour, mr.TTL("job:"+j.ID))

	got, err := m.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "hi", got.Result["title"])
}

func TestMirrorMissing(t *testing.T) {
	m, _ := newTestMirror(t)
	_, err := m.GetJob(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotMirrored)
	_, err = m.GetBulk(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotMirrored)
}

func TestMirrorBulkRows(t *testing.T) {
	m, _ := newTestMirror(t)
	ctx := context.Background()

	a := New("", KindURL, "web", "https://a.test", nil, PriorityNormal, 0, t0)
	require.NoError(t, a.MarkRunning(t0))
	require.NoError(t, a.MarkCompleted(Result{"title": "A"}, t0))
	require.NoError(t, m.StoreJob(ctx, a.Clone()))

	b := NewBulk("", "pages", []string{a.ID, "gone"}, t0)
	require.NoError(t, m.StoreBulk(ctx, b.Clone()))

	rows, err := m.BulkRows(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "https://a.test", rows[0].Target)
	assert.Equal(t, StatusCompleted, rows[0].Status)
	assert.Equal(t, "gone", rows[1].JobID)
	assert.Equal(t, StatusPending, rows[1].Status)
}

func TestMirrorExportLocation(t *testing.T) {
	m, _ := newTestMirror(t)
	ctx := context.Background()

	require.NoError(t, m.StoreExport(ctx, "bulk-1", "csv", "exports/scrape_results_bulk-1.csv"))
	loc, err := m.ExportLocation(ctx, "bulk-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "exports/scrape_results_bulk-1.csv", loc)

	_, err = m.ExportLocation(ctx, "bulk-1", "json")
	assert.ErrorIs(t, err, ErrNotMirrored)
}
