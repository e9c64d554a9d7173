package dispatch

import (
	"context"

	"github.com/wesleyorama2/courier/internal/config"
	"github.com/wesleyorama2/courier/internal/filters"
	"github.com/wesleyorama2/courier/internal/loader"
	"github.com/wesleyorama2/courier/internal/provider/nethttp"
	"github.com/wesleyorama2/courier/internal/registry"
	"github.com/wesleyorama2/courier/internal/request"
	"github.com/wesleyorama2/courier/internal/task"
)

type (
	Dispatcher        = request.Dispatcher
	DispatcherOption  = request.DispatcherOption
	Options           = request.Options
	Response          = request.Response
	TimingInfo        = request.TimingInfo
	Provider          = request.Provider
	ProviderTest      = request.ProviderTest
	ProviderLoader    = request.ProviderLoader
	Filter            = request.Filter
	FilterTest        = request.FilterTest
	TransportError    = request.TransportError
	FilterError       = request.FilterError
	ProviderLoadError = request.ProviderLoadError

	// ResponseTask is the pending result of an asynchronous request.
	ResponseTask = task.Task[*request.Response]

	Handle         = registry.Handle
	Handles        = registry.Handles
	RegisterOption = registry.RegisterOption

	// Config selects and configures the default provider.
	Config = loader.Config
)

// Response types understood by the built-in provider and filter.
const (
	ResponseTypeJSON  = request.ResponseTypeJSON
	ResponseTypeBytes = nethttp.ResponseTypeBytes
)

// Environment names for Config.Environment.
const (
	EnvNet    = loader.EnvNet
	EnvReplay = loader.EnvReplay
)

var (
	WithLogger   = request.WithLogger
	WithRecorder = request.WithRecorder
	Prepend      = registry.Prepend
	PrependIf    = registry.PrependIf
)

// New returns a dispatcher whose default provider is resolved from cfg on
// first use.
func New(cfg Config, opts ...DispatcherOption) *Dispatcher {
	return request.New(loader.New(cfg).Load, opts...)
}

// NewWithLoader returns a dispatcher whose default provider comes from load.
func NewWithLoader(load ProviderLoader, opts ...DispatcherOption) *Dispatcher {
	return request.New(load, opts...)
}

// FromFile returns a dispatcher configured by a JSON or YAML config file:
// its default provider settings, routes and filters. Destroying the
// returned handles removes the routes and filters.
func FromFile(ctx context.Context, path string, opts ...DispatcherOption) (*Dispatcher, Handles, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	lcfg, err := cfg.LoaderConfig(nil)
	if err != nil {
		return nil, nil, err
	}
	l := loader.New(lcfg)
	d := request.New(l.Load, opts...)
	handles, err := cfg.Apply(ctx, d, l)
	if err != nil {
		return nil, nil, err
	}
	return d, handles, nil
}

// ExtractFilter returns a filter that replaces the response data with the
// value at a JSONPath expression.
func ExtractFilter(path string) (Filter, error) {
	return filters.Extract(path)
}

// SchemaFilter returns a filter that fails responses whose data does not
// validate against a JSON Schema document.
func SchemaFilter(schema string) (Filter, error) {
	return filters.Schema(schema)
}
