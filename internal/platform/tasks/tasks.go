// Package tasks carries engine submissions over asynq so that clients outside
// the daemon can feed it.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"harvester/internal/platform/redis"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TypeJob    = "harvest:job"
	TypeBulk   = "harvest:bulk"
	TypeExport = "harvest:export"
)

type JobPayload struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Platform   string         `json:"platform"`
	Target     string         `json:"target"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Priority   int            `json:"priority,omitempty"`
	MaxRetries *int           `json:"max_retries,omitempty"`
}

type BulkPayload struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Kind       string         `json:"kind"`
	Platform   string         `json:"platform"`
	Targets    []string       `json:"targets"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Priority   int            `json:"priority,omitempty"`
	MaxRetries *int           `json:"max_retries,omitempty"`
}

// ExportPayload asks the daemon to render an export of a bulk or single job
// and store it.
type ExportPayload struct {
	ID     string `json:"id"`
	Format string `json:"format"`
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return asynq.NewTask(typ, b), nil
}

// Decode unmarshals a task payload into v.
func Decode(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	return nil
}

type Client struct {
	c          *asynq.Client
	queue      string
	maxRetries int
}

func New(r *redis.Service, queue string, maxRetries int) *Client {
	if queue == "" {
		queue = "default"
	}
	return &Client{c: asynq.NewClient(r.AsynqRedisOpt()), queue: queue, maxRetries: maxRetries}
}

func (t *Client) Close() error { return t.c.Close() }

func (t *Client) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	opts = append([]asynq.Option{asynq.Queue(t.queue), asynq.MaxRetry(t.maxRetries)}, opts...)
	_, err := t.c.EnqueueContext(ctx, task, opts...)
	return err
}

// EnqueueJob assigns an id when the payload has none and returns it, so the
// caller can poll the job's snapshot.
func (t *Client) EnqueueJob(ctx context.Context, p JobPayload) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	task, err := newTask(TypeJob, p)
	if err != nil {
		return "", err
	}
	if err := t.Enqueue(ctx, task, asynq.TaskID(TypeJob+":"+p.ID)); err != nil {
		return "", fmt.Errorf("enqueue job %s: %w", p.ID, err)
	}
	return p.ID, nil
}

func (t *Client) EnqueueBulk(ctx context.Context, p BulkPayload) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	task, err := newTask(TypeBulk, p)
	if err != nil {
		return "", err
	}
	if err := t.Enqueue(ctx, task, asynq.TaskID(TypeBulk+":"+p.ID)); err != nil {
		return "", fmt.Errorf("enqueue bulk job %s: %w", p.ID, err)
	}
	return p.ID, nil
}

func (t *Client) EnqueueExport(ctx context.Context, p ExportPayload) error {
	task, err := newTask(TypeExport, p)
	if err != nil {
		return err
	}
	if err := t.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue export of %s: %w", p.ID, err)
	}
	return nil
}
