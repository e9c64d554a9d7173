package request

import (
	"context"
	"fmt"
	"regexp"

	"github.com/wesleyorama2/courier/internal/registry"
)

// IdentityFilter leaves the response data unchanged.
func IdentityFilter(ctx context.Context, resp *Response, url string, opts *Options) (interface{}, error) {
	return resp.Data, nil
}

// FilterRegistry selects the filter applied to each response. Its default
// is IdentityFilter, so Match never fails.
type FilterRegistry struct {
	entries *registry.Registry[Filter]
}

// NewFilterRegistry creates a filter registry with no entries.
func NewFilterRegistry() *FilterRegistry {
	return &FilterRegistry{entries: registry.NewWithDefault[Filter](IdentityFilter)}
}

// Register adds f under test. A string test matches the request URL
// exactly, a *regexp.Regexp is matched against the URL and a FilterTest is
// called with the response, URL and options.
func (r *FilterRegistry) Register(test any, f Filter, opts ...registry.RegisterOption) (*registry.Handle, error) {
	if f == nil {
		return nil, &registry.ParameterError{Param: "filter", Message: "filter is required"}
	}
	pred, err := filterPredicate(test)
	if err != nil {
		return nil, err
	}
	return r.entries.Register(pred, f, opts...)
}

// MustRegister is Register that panics on invalid arguments.
func (r *FilterRegistry) MustRegister(test any, f Filter, opts ...registry.RegisterOption) *registry.Handle {
	h, err := r.Register(test, f, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

// Match returns the filter for a response.
func (r *FilterRegistry) Match(resp *Response, url string, opts *Options) Filter {
	f, err := r.entries.Match(resp, url, opts)
	if err != nil {
		return IdentityFilter
	}
	return f
}

// Len returns the number of registered filters.
func (r *FilterRegistry) Len() int {
	return r.entries.Len()
}

func filterPredicate(test any) (registry.Predicate, error) {
	var fn FilterTest
	switch t := test.(type) {
	case string:
		return func(args ...any) bool { return argURL(args, 1) == t }, nil
	case *regexp.Regexp:
		if t == nil {
			return nil, &registry.ParameterError{Param: "test", Message: "nil pattern"}
		}
		return func(args ...any) bool { return t.MatchString(argURL(args, 1)) }, nil
	case FilterTest:
		fn = t
	case func(*Response, string, *Options) bool:
		fn = t
	default:
		return nil, &registry.ParameterError{Param: "test", Message: fmt.Sprintf("unsupported filter test type %T", test)}
	}
	if fn == nil {
		return nil, &registry.ParameterError{Param: "test", Message: "nil filter test"}
	}
	return func(args ...any) bool {
		resp, _ := args[0].(*Response)
		opts, _ := args[2].(*Options)
		return fn(resp, argURL(args, 1), opts)
	}, nil
}

func argURL(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}
