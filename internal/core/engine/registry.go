package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"harvester/internal/core/job"
)

// Capability scrapes one target for a platform. Implementations enforce their
// own timeouts; the engine imposes none.
type Capability interface {
	Execute(ctx context.Context, j job.Job) (job.Result, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, j job.Job) (job.Result, error)

func (f CapabilityFunc) Execute(ctx context.Context, j job.Job) (job.Result, error) {
	return f(ctx, j)
}

// KindSupporter is implemented by capabilities that handle only some kinds.
// Jobs of other kinds fail permanently without reaching Execute.
type KindSupporter interface {
	Supports(kind job.Kind) bool
}

// Registry maps platform names to capabilities.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// Register adds or replaces the capability for platform.
func (r *Registry) Register(platform string, c Capability) error {
	platform = normalizePlatform(platform)
	if platform == "" || c == nil {
		return fmt.Errorf("%w: platform=%q", ErrInvalidCapability, platform)
	}
	r.mu.Lock()
	r.caps[platform] = c
	r.mu.Unlock()
	return nil
}

// Get returns the capability for platform or a permanent ErrUnknownPlatform.
func (r *Registry) Get(platform string) (Capability, error) {
	r.mu.RLock()
	c, ok := r.caps[normalizePlatform(platform)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", job.ErrUnknownPlatform, platform)
	}
	return c, nil
}

// Platforms lists registered platform names in order.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.caps))
	for p := range r.caps {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func normalizePlatform(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}
