package request

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wesleyorama2/courier/internal/task"
)

// LatencyRecorder receives the outcome of every dispatched request.
type LatencyRecorder interface {
	RecordLatency(duration time.Duration, requestName string, success bool)
}

// Dispatcher resolves a provider and a filter for each request.
type Dispatcher struct {
	providers *ProviderRegistry
	filters   *FilterRegistry
	logger    *slog.Logger
	recorder  LatencyRecorder
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger for dispatch events.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRecorder reports request latencies to rec.
func WithRecorder(rec LatencyRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = rec
	}
}

// NewDispatcher creates a dispatcher over existing registries.
func NewDispatcher(providers *ProviderRegistry, filters *FilterRegistry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		providers: providers,
		filters:   filters,
		logger:    slog.Default(),
	}
	if d.filters == nil {
		d.filters = NewFilterRegistry()
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// New creates a dispatcher with fresh registries: the default provider is
// resolved by loader and the JSON filter is registered.
func New(loader ProviderLoader, opts ...DispatcherOption) *Dispatcher {
	d := NewDispatcher(nil, NewFilterRegistry(), opts...)
	d.providers = NewProviderRegistry(loader, WithProviderLogger(d.logger))
	d.filters.MustRegister(FilterTest(JSONTest), JSONFilter)
	return d
}

// Providers returns the provider registry.
func (d *Dispatcher) Providers() *ProviderRegistry { return d.providers }

// Filters returns the filter registry.
func (d *Dispatcher) Filters() *FilterRegistry { return d.filters }

// Do performs a request and blocks until the filtered response is ready.
func (d *Dispatcher) Do(ctx context.Context, url string, opts *Options) (*Response, error) {
	if opts == nil {
		opts = &Options{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	logger := d.logger.With("request_id", uuid.NewString(), "method", method, "url", url)
	start := time.Now()

	provider := d.providers.Match(url, opts)
	logger.Debug("dispatching request", "default_provider_resolved", d.providers.Resolved())

	resp, err := provider(ctx, url, opts)
	if err == nil && resp == nil {
		err = &TransportError{URL: url, Err: errors.New("provider returned no response")}
	}
	if err != nil {
		err = asTransportError(url, err)
		d.record(method, start, false)
		logger.Debug("provider failed", "error", err)
		return nil, err
	}

	filter := d.filters.Match(resp, url, opts)
	data, err := filter(ctx, resp, url, opts)
	if err != nil {
		var filterErr *FilterError
		if !errors.As(err, &filterErr) {
			err = &FilterError{URL: url, Response: resp, Err: err}
		}
		d.record(method, start, false)
		logger.Debug("filter failed", "status", resp.StatusCode, "error", err)
		return nil, err
	}
	resp.Data = data

	d.record(method, start, true)
	logger.Debug("request complete", "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

// Request performs a request asynchronously.
func (d *Dispatcher) Request(ctx context.Context, url string, opts *Options) *task.Task[*Response] {
	return task.Go(ctx, func(ctx context.Context) (*Response, error) {
		return d.Do(ctx, url, opts)
	})
}

// Get performs a GET request
func (d *Dispatcher) Get(ctx context.Context, url string, opts *Options) *task.Task[*Response] {
	return d.withMethod(ctx, http.MethodGet, url, opts)
}

// Post performs a POST request
func (d *Dispatcher) Post(ctx context.Context, url string, opts *Options) *task.Task[*Response] {
	return d.withMethod(ctx, http.MethodPost, url, opts)
}

// Put performs a PUT request
func (d *Dispatcher) Put(ctx context.Context, url string, opts *Options) *task.Task[*Response] {
	return d.withMethod(ctx, http.MethodPut, url, opts)
}

// Delete performs a DELETE request
func (d *Dispatcher) Delete(ctx context.Context, url string, opts *Options) *task.Task[*Response] {
	return d.withMethod(ctx, http.MethodDelete, url, opts)
}

func (d *Dispatcher) withMethod(ctx context.Context, method, url string, opts *Options) *task.Task[*Response] {
	opts = opts.Clone()
	opts.Method = method
	return d.Request(ctx, url, opts)
}

func (d *Dispatcher) record(method string, start time.Time, success bool) {
	if d.recorder != nil {
		d.recorder.RecordLatency(time.Since(start), method, success)
	}
}

// asTransportError wraps provider failures that are not already classified.
func asTransportError(url string, err error) error {
	var transportErr *TransportError
	var loadErr *ProviderLoadError
	switch {
	case errors.As(err, &transportErr), errors.As(err, &loadErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &TransportError{URL: url, Err: err}
	}
}
