package vectorindex

import (
	"context"
	"sync"
)

// onceFlags is a process-wide, namespace-keyed set of sync.Once guards. It
// lets EnsureCollection be called on every write path without forcing a
// network round trip each time: the first caller for a namespace pays the
// provisioning cost, every later caller in the same process short-circuits.
// This is deliberately process-local, not distributed — a second replica
// re-provisions once on its own first call, which is harmless because
// EnsureCollection is idempotent on the backend side too.
type onceFlags struct {
	mu    sync.Mutex
	flags map[string]*sync.Once
}

func newOnceFlags() *onceFlags {
	return &onceFlags{flags: make(map[string]*sync.Once)}
}

// Do runs fn at most once per namespace for the lifetime of the process,
// provided fn succeeds. A failing fn is eligible to run again on the next
// call for that namespace.
func (o *onceFlags) Do(namespace string, fn func() error) error {
	o.mu.Lock()
	once, ok := o.flags[namespace]
	if !ok {
		once = &sync.Once{}
		o.flags[namespace] = once
	}
	o.mu.Unlock()

	var err error
	once.Do(func() { err = fn() })
	if err != nil {
		// Let the next caller retry: reset so this namespace isn't
		// permanently marked "ensured" after a failed attempt.
		o.mu.Lock()
		o.flags[namespace] = &sync.Once{}
		o.mu.Unlock()
	}
	return err
}

// ensuredClient decorates a Client so that EnsureCollection for a given
// namespace only ever reaches the backend once per process.
type ensuredClient struct {
	Client
	flags *onceFlags
}

// WithEnsureOnce wraps client so repeated EnsureCollection calls for the
// same namespace collapse into a single backend round trip per process
// (spec.md §5's "shared state" requirement). Every other method passes
// through unchanged.
func WithEnsureOnce(client Client) Client {
	return &ensuredClient{Client: client, flags: newOnceFlags()}
}

func (e *ensuredClient) EnsureCollection(ctx context.Context, namespace string, dim int, metric Metric) error {
	return e.flags.Do(namespace, func() error {
		return e.Client.EnsureCollection(ctx, namespace, dim, metric)
	})
}

var _ Client = (*ensuredClient)(nil)
