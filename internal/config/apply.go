package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/wesleyorama2/courier/internal/filters"
	"github.com/wesleyorama2/courier/internal/loader"
	"github.com/wesleyorama2/courier/internal/registry"
	"github.com/wesleyorama2/courier/internal/request"
)

// LoaderConfig returns the default-provider settings described by c.
func (c *Config) LoaderConfig(logger *slog.Logger) (loader.Config, error) {
	timeout, err := c.TimeoutDuration()
	if err != nil {
		return loader.Config{}, err
	}
	return loader.Config{
		Environment: c.Environment,
		Fixtures:    c.Resolve(c.Fixtures),
		Timeout:     timeout,
		Headers:     c.Headers,
		UserAgent:   c.UserAgent,
		Logger:      logger,
	}, nil
}

// Apply registers the configured routes and filters on d. Route providers
// are built eagerly with l. The returned handles remove every registration.
func (c *Config) Apply(ctx context.Context, d *request.Dispatcher, l *loader.Loader) (registry.Handles, error) {
	var handles registry.Handles
	fail := func(err error) (registry.Handles, error) {
		handles.Destroy()
		return nil, err
	}

	base := l.Config()
	for i, route := range c.Routes {
		test, err := ruleTest(route.URL, route.Pattern)
		if err != nil {
			return fail(fmt.Errorf("routes[%d]: %w", i, err))
		}

		cfg := base
		cfg.Environment = route.Environment
		if route.Fixtures != "" {
			cfg.Fixtures = c.Resolve(route.Fixtures)
		}
		provider, err := l.Build(ctx, route.Environment, cfg)
		if err != nil {
			return fail(fmt.Errorf("routes[%d]: %w", i, err))
		}

		h, err := d.Providers().Register(test, provider, registry.PrependIf(route.Prepend))
		if err != nil {
			return fail(fmt.Errorf("routes[%d]: %w", i, err))
		}
		handles = append(handles, h)
	}

	for i, rule := range c.Filters {
		test, err := ruleTest(rule.URL, rule.Pattern)
		if err != nil {
			return fail(fmt.Errorf("filters[%d]: %w", i, err))
		}

		f, err := c.buildFilter(rule)
		if err != nil {
			return fail(fmt.Errorf("filters[%d]: %w", i, err))
		}

		h, err := d.Filters().Register(test, f, registry.PrependIf(rule.Prepend))
		if err != nil {
			return fail(fmt.Errorf("filters[%d]: %w", i, err))
		}
		handles = append(handles, h)
	}

	return handles, nil
}

func (c *Config) buildFilter(rule FilterRule) (request.Filter, error) {
	switch {
	case rule.Extract != "":
		return filters.Extract(rule.Extract)
	case len(rule.Schema) > 0:
		return filters.Schema(string(rule.Schema))
	case rule.SchemaFile != "":
		data, err := os.ReadFile(c.Resolve(rule.SchemaFile))
		if err != nil {
			return nil, fmt.Errorf("error reading schema file: %w", err)
		}
		return filters.Schema(string(data))
	default:
		return nil, fmt.Errorf("no filter action configured")
	}
}

func ruleTest(url, pattern string) (any, error) {
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		return re, nil
	}
	if url == "" {
		return nil, fmt.Errorf("url or pattern is required")
	}
	return url, nil
}
