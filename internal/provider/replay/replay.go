// Package replay provides an offline request provider that answers from a
// fixtures file instead of the network.
//
// A fixtures file is YAML (or JSON, which YAML accepts):
//
//	fixtures:
//	  - url: https://api.example.com/users
//	    method: GET
//	    status: 200
//	    headers:
//	      Content-Type: application/json
//	    body: '{"users":[]}'
//
// A fixture's url may instead be given as a regular expression in pattern.
// Fixtures are matched in file order; the first match wins.
package replay

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/courier/internal/registry"
	"github.com/wesleyorama2/courier/internal/request"
)

// Fixture is one canned response.
type Fixture struct {
	URL     string            `yaml:"url,omitempty" json:"url,omitempty"`
	Pattern string            `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Method  string            `yaml:"method,omitempty" json:"method,omitempty"`
	Status  int               `yaml:"status,omitempty" json:"status,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty" json:"body,omitempty"`
}

// File is the on-disk fixtures document.
type File struct {
	Fixtures []Fixture `yaml:"fixtures" json:"fixtures"`
}

// Provider answers requests from fixtures.
type Provider struct {
	fixtures *registry.Registry[*Fixture]
}

// Load reads a fixtures file.
func Load(path string) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading fixtures file: %w", err)
	}
	return Parse(data)
}

// Parse builds a provider from a fixtures document.
func Parse(data []byte) (*Provider, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing fixtures file: %w", err)
	}
	return New(f.Fixtures...)
}

// New builds a provider from fixtures.
func New(fixtures ...Fixture) (*Provider, error) {
	p := &Provider{fixtures: registry.New[*Fixture]()}
	for i := range fixtures {
		fx := fixtures[i]
		if err := p.add(&fx); err != nil {
			return nil, fmt.Errorf("fixtures[%d]: %w", i, err)
		}
	}
	return p, nil
}

func (p *Provider) add(fx *Fixture) error {
	var urlTest any
	switch {
	case fx.Pattern != "":
		re, err := regexp.Compile(fx.Pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
		urlTest = re
	case fx.URL != "":
		urlTest = fx.URL
	default:
		return fmt.Errorf("url or pattern is required")
	}

	urlPred, err := registry.ToPredicate(urlTest)
	if err != nil {
		return err
	}
	method := strings.ToUpper(fx.Method)

	_, err = p.fixtures.Register(registry.Predicate(func(args ...any) bool {
		if !urlPred(args...) {
			return false
		}
		if method == "" {
			return true
		}
		reqMethod, _ := args[1].(string)
		return reqMethod == method
	}), fx)
	return err
}

// Len returns the number of fixtures.
func (p *Provider) Len() int {
	return p.fixtures.Len()
}

// Do answers a request from the first matching fixture. Unmatched requests
// and fixtures with status 400 or above fail with *request.TransportError.
func (p *Provider) Do(ctx context.Context, url string, opts *request.Options) (*request.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &request.Options{}
	}
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	fx, ok := p.fixtures.Lookup(url, method)
	if !ok {
		resp := &request.Response{
			StatusCode: http.StatusNotFound,
			StatusText: statusText(http.StatusNotFound),
			URL:        url,
			Options:    opts,
			Header:     http.Header{},
			Data:       "",
		}
		return nil, &request.TransportError{URL: url, Response: resp, Err: fmt.Errorf("no fixture for %s %s", method, url)}
	}

	status := fx.Status
	if status == 0 {
		status = http.StatusOK
	}
	header := make(http.Header, len(fx.Headers))
	for k, v := range fx.Headers {
		header.Set(k, v)
	}

	resp := &request.Response{
		Data:       fx.Body,
		StatusCode: status,
		StatusText: statusText(status),
		URL:        url,
		Options:    opts,
		Header:     header,
		Native:     fx,
	}
	if status >= 400 {
		return nil, &request.TransportError{URL: url, Response: resp}
	}
	return resp, nil
}

func statusText(code int) string {
	return fmt.Sprintf("%d %s", code, http.StatusText(code))
}
