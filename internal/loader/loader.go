// Package loader resolves the default request provider for the current
// execution environment.
//
// Environments are named factories held in an ordered registry. The
// environment is taken from Config.Environment, then from the COURIER_ENV
// variable, and otherwise detected: "replay" when a fixtures file is
// configured, "net" otherwise.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/wesleyorama2/courier/internal/provider/nethttp"
	"github.com/wesleyorama2/courier/internal/provider/replay"
	"github.com/wesleyorama2/courier/internal/registry"
	"github.com/wesleyorama2/courier/internal/request"
)

// Environment names.
const (
	EnvNet    = "net"
	EnvReplay = "replay"
)

// EnvVar overrides the detected environment.
const EnvVar = "COURIER_ENV"

// ErrUnknownEnvironment is wrapped by the load error for an unregistered environment.
var ErrUnknownEnvironment = errors.New("unknown environment or loader")

// Config describes how default providers are built.
type Config struct {
	Environment string
	Fixtures    string
	Timeout     time.Duration
	Headers     map[string]string
	UserAgent   string
	Logger      *slog.Logger
}

// Factory builds the provider for one environment.
type Factory func(ctx context.Context, cfg Config) (request.Provider, error)

// Loader resolves environments to providers.
type Loader struct {
	cfg       Config
	envs      *registry.Registry[Factory]
	lookupEnv func(string) (string, bool)
}

// New creates a loader with the built-in environments registered.
func New(cfg Config) *Loader {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	l := &Loader{
		cfg:       cfg,
		envs:      registry.New[Factory](),
		lookupEnv: os.LookupEnv,
	}
	l.envs.MustRegister(EnvNet, Factory(netFactory))
	l.envs.MustRegister(EnvReplay, Factory(replayFactory))
	return l
}

// Register adds or overrides an environment. Later registrations take
// precedence over built-ins.
func (l *Loader) Register(name string, f Factory) (*registry.Handle, error) {
	if f == nil {
		return nil, &registry.ParameterError{Param: "factory", Message: "factory is required"}
	}
	return l.envs.Register(strings.ToLower(name), f, registry.Prepend())
}

// Environment returns the environment the loader will resolve.
func (l *Loader) Environment() string {
	if env := strings.TrimSpace(l.cfg.Environment); env != "" {
		return strings.ToLower(env)
	}
	if env, ok := l.lookupEnv(EnvVar); ok && strings.TrimSpace(env) != "" {
		return strings.ToLower(strings.TrimSpace(env))
	}
	if l.cfg.Fixtures != "" {
		return EnvReplay
	}
	return EnvNet
}

// Load builds the provider for the current environment. It has the
// request.ProviderLoader signature.
func (l *Loader) Load(ctx context.Context) (request.Provider, error) {
	env := l.Environment()
	l.cfg.Logger.Debug("building default provider", "environment", env)
	return l.Build(ctx, env, l.cfg)
}

// Build creates the provider for a named environment with cfg, bypassing
// environment detection. It is used for per-route providers.
func (l *Loader) Build(ctx context.Context, env string, cfg Config) (request.Provider, error) {
	env = strings.ToLower(strings.TrimSpace(env))
	factory, err := l.envs.Match(env)
	if err != nil {
		return nil, &request.ProviderLoadError{Env: env, Err: fmt.Errorf("%w: %v", ErrUnknownEnvironment, err)}
	}
	if cfg.Logger == nil {
		cfg.Logger = l.cfg.Logger
	}
	provider, err := factory(ctx, cfg)
	if err != nil {
		return nil, &request.ProviderLoadError{Env: env, Err: err}
	}
	return provider, nil
}

// Config returns the loader's configuration.
func (l *Loader) Config() Config {
	return l.cfg
}

func netFactory(ctx context.Context, cfg Config) (request.Provider, error) {
	opts := []nethttp.ClientOption{}
	if cfg.Timeout > 0 {
		opts = append(opts, nethttp.WithTimeout(cfg.Timeout))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, nethttp.WithUserAgent(cfg.UserAgent))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, nethttp.WithHeader(k, v))
	}
	return nethttp.NewClient(opts...).Provider(), nil
}

func replayFactory(ctx context.Context, cfg Config) (request.Provider, error) {
	if cfg.Fixtures == "" {
		return nil, errors.New("replay environment requires a fixtures file")
	}
	p, err := replay.Load(cfg.Fixtures)
	if err != nil {
		return nil, err
	}
	return p.Do, nil
}
