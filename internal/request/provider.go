package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/wesleyorama2/courier/internal/registry"
)

type bootstrapState int

const (
	stateUnresolved bootstrapState = iota
	stateLoading
	stateResolved
)

func (s bootstrapState) String() string {
	switch s {
	case stateUnresolved:
		return "unresolved"
	case stateLoading:
		return "loading"
	case stateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// loadCall is one in-flight default-provider load shared by every waiter.
type loadCall struct {
	done     chan struct{}
	provider Provider
	err      error
}

// ProviderRegistry selects the provider for each request. When nothing
// matches, the environment's default provider is used; it is loaded once,
// on first use, through the registry's ProviderLoader.
type ProviderRegistry struct {
	entries *registry.Registry[Provider]
	loader  ProviderLoader
	logger  *slog.Logger

	mu       sync.Mutex
	state    bootstrapState
	pending  *loadCall
	resolved Provider
	loads    int
}

// ProviderRegistryOption configures a ProviderRegistry
type ProviderRegistryOption func(*ProviderRegistry)

// WithProviderLogger sets the logger used for bootstrap events.
func WithProviderLogger(logger *slog.Logger) ProviderRegistryOption {
	return func(r *ProviderRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewProviderRegistry creates a provider registry whose default provider is
// resolved by loader.
func NewProviderRegistry(loader ProviderLoader, opts ...ProviderRegistryOption) *ProviderRegistry {
	r := &ProviderRegistry{
		entries: registry.New[Provider](),
		loader:  loader,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds p under test. A string test matches the URL exactly, a
// *regexp.Regexp is matched against the URL and a ProviderTest is called
// with the URL and options.
func (r *ProviderRegistry) Register(test any, p Provider, opts ...registry.RegisterOption) (*registry.Handle, error) {
	if p == nil {
		return nil, &registry.ParameterError{Param: "provider", Message: "provider is required"}
	}
	pred, err := providerPredicate(test)
	if err != nil {
		return nil, err
	}
	return r.entries.Register(pred, p, opts...)
}

// Match returns the provider for a request. Without a matching entry it
// returns the resolved default provider or, before resolution, a provider
// that waits for the shared default-provider load.
func (r *ProviderRegistry) Match(url string, opts *Options) Provider {
	if p, ok := r.entries.Lookup(url, opts); ok {
		return p
	}
	return r.Default()
}

// Default returns the current default provider.
func (r *ProviderRegistry) Default() Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == stateResolved {
		return r.resolved
	}
	return r.deferRequest
}

// Resolved reports whether the default provider has been loaded.
func (r *ProviderRegistry) Resolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateResolved
}

// Loads returns the number of default-provider loads started so far.
func (r *ProviderRegistry) Loads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

// Len returns the number of registered providers.
func (r *ProviderRegistry) Len() int {
	return r.entries.Len()
}

// deferRequest waits for the default provider and then performs the request
// with it. A caller cancelled while waiting never reaches the provider.
func (r *ProviderRegistry) deferRequest(ctx context.Context, url string, opts *Options) (*Response, error) {
	call := r.bootstrap(ctx)

	select {
	case <-call.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if call.err != nil {
		return nil, call.err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return call.provider(ctx, url, opts)
}

// bootstrap returns the in-flight load, starting one if the registry is
// unresolved.
func (r *ProviderRegistry) bootstrap(ctx context.Context) *loadCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateResolved:
		call := &loadCall{done: make(chan struct{}), provider: r.resolved}
		close(call.done)
		return call
	case stateLoading:
		return r.pending
	}

	call := &loadCall{done: make(chan struct{})}
	r.state = stateLoading
	r.pending = call
	r.loads++
	r.logger.Info("loading default provider", "attempt", r.loads)

	// The load outlives whichever request started it.
	go r.load(context.WithoutCancel(ctx), call)
	return call
}

func (r *ProviderRegistry) load(ctx context.Context, call *loadCall) {
	provider, err := r.runLoader(ctx)
	if err == nil && provider == nil {
		err = errors.New("loader returned no provider")
	}
	if err != nil {
		var loadErr *ProviderLoadError
		if !errors.As(err, &loadErr) {
			err = &ProviderLoadError{Err: err}
		}
	}

	r.mu.Lock()
	if err != nil {
		// Back to unresolved so the next request retries the load.
		r.state = stateUnresolved
		r.logger.Warn("default provider load failed", "error", err)
	} else {
		r.state = stateResolved
		r.resolved = provider
		r.logger.Info("default provider resolved")
	}
	r.pending = nil
	call.provider = provider
	call.err = err
	r.mu.Unlock()

	close(call.done)
}

func (r *ProviderRegistry) runLoader(ctx context.Context) (p Provider, err error) {
	if r.loader == nil {
		return nil, &ProviderLoadError{Err: errors.New("no provider loader configured")}
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("provider loader panicked: %v", rec)
		}
	}()
	return r.loader(ctx)
}

func providerPredicate(test any) (registry.Predicate, error) {
	var fn ProviderTest
	switch t := test.(type) {
	case string:
		return func(args ...any) bool { return argURL(args, 0) == t }, nil
	case *regexp.Regexp:
		if t == nil {
			return nil, &registry.ParameterError{Param: "test", Message: "nil pattern"}
		}
		return func(args ...any) bool { return t.MatchString(argURL(args, 0)) }, nil
	case ProviderTest:
		fn = t
	case func(string, *Options) bool:
		fn = t
	default:
		return nil, &registry.ParameterError{Param: "test", Message: fmt.Sprintf("unsupported provider test type %T", test)}
	}
	if fn == nil {
		return nil, &registry.ParameterError{Param: "test", Message: "nil provider test"}
	}
	return func(args ...any) bool {
		var opts *Options
		if len(args) > 1 {
			opts, _ = args[1].(*Options)
		}
		return fn(argURL(args, 0), opts)
	}, nil
}
