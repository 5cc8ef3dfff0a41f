package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// DepKey identifies a dependency a tool handler resolves through a
// Container rather than a package-level global — the sandbox root
// (sandbox.Key) and the §6 tools.bash.* knobs (sandbox.MaxOutputBytesKey,
// sandbox.TimeoutKey) all flow into handlers this way, each wired once at
// daemon startup in cmd/chitti/main.go's buildRegistry.
type DepKey[T any] struct{ Name string }

func Dep[T any](name string) DepKey[T] { return DepKey[T]{Name: name} }

type Provider[T any] func(ctx context.Context) (T, error)

type ctxKey string

const callIDKey ctxKey = "tools.call_id"

// WithCallID attaches a call_id to the context for tool handlers, the
// Invocation's correlation id from §3.
func WithCallID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, callIDKey, id)
}

func CallID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(callIDKey).(string)
	return strings.TrimSpace(v)
}

// Container resolves dependencies using registered providers with optional
// overrides, memoized per instance. Overrides exist for tests: they shadow
// a production provider (e.g. a real Sandbox) without touching how the
// handler under test resolves it.
type Container struct {
	mu        sync.Mutex
	providers map[string]any
	overrides map[string]any
	cache     map[string]any
}

func NewContainer() *Container {
	return &Container{providers: map[string]any{}, overrides: map[string]any{}, cache: map[string]any{}}
}

func (c *Container) ProvideAny(name string, provider any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = provider
}

func (c *Container) OverrideAny(name string, provider any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[name] = provider
	delete(c.cache, name)
}

func Provide[T any](c *Container, key DepKey[T], p Provider[T]) { c.ProvideAny(key.Name, p) }

func Override[T any](c *Container, key DepKey[T], p Provider[T]) { c.OverrideAny(key.Name, p) }

func Get[T any](c *Container, ctx context.Context, key DepKey[T]) (T, error) {
	var zero T
	c.mu.Lock()
	if v, ok := c.cache[key.Name]; ok {
		c.mu.Unlock()
		vv, ok := v.(T)
		if !ok {
			return zero, fmt.Errorf("dependency %q has unexpected type", key.Name)
		}
		return vv, nil
	}
	provAny, ok := c.overrides[key.Name]
	if !ok {
		provAny, ok = c.providers[key.Name]
	}
	c.mu.Unlock()
	if !ok {
		return zero, fmt.Errorf("missing dependency provider: %q", key.Name)
	}
	prov, ok := provAny.(Provider[T])
	if !ok {
		return zero, fmt.Errorf("dependency %q provider has incompatible type", key.Name)
	}
	v, err := prov(ctx)
	if err != nil {
		return zero, err
	}
	c.mu.Lock()
	c.cache[key.Name] = v
	c.mu.Unlock()
	return v, nil
}

// GetOr resolves key, falling back to a caller-supplied default whenever no
// provider was wired or the provider errored, rather than requiring every
// call site to repeat the "err == nil && valid" guard §6's optional
// tools.bash.* settings otherwise need (see sandbox.bashTool).
func GetOr[T any](c *Container, ctx context.Context, key DepKey[T], fallback T) T {
	v, err := Get(c, ctx, key)
	if err != nil {
		return fallback
	}
	return v
}
