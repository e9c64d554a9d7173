package registry

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Predicate decides whether an entry applies to a set of match arguments.
type Predicate func(args ...any) bool

// NoMatchError is returned by Match when no entry matches and the registry
// has no default value.
type NoMatchError struct {
	Args []any
}

// Error returns the error message
func (e *NoMatchError) Error() string {
	parts := make([]string, len(e.Args))
	for i, arg := range e.Args {
		parts[i] = fmt.Sprintf("%v", arg)
	}
	return fmt.Sprintf("no match found for (%s)", strings.Join(parts, ", "))
}

// ParameterError is returned by Register for an unsupported test.
type ParameterError struct {
	Param   string
	Message string
}

// Error returns the error message
func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Message)
}

type entry[T any] struct {
	test  Predicate
	value T
}

// Registry is an ordered sequence of predicate/value entries.
type Registry[T any] struct {
	mu           sync.RWMutex
	entries      []*entry[T]
	defaultValue T
	hasDefault   bool
}

// New creates an empty registry without a default value.
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// NewWithDefault creates an empty registry that returns value when nothing matches.
func NewWithDefault[T any](value T) *Registry[T] {
	return &Registry[T]{defaultValue: value, hasDefault: true}
}

// RegisterOption configures a single registration.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	prepend bool
}

// Prepend places the new entry ahead of every existing entry.
func Prepend() RegisterOption {
	return func(o *registerOptions) { o.prepend = true }
}

// PrependIf is Prepend when first is true and a no-op otherwise.
func PrependIf(first bool) RegisterOption {
	return func(o *registerOptions) { o.prepend = o.prepend || first }
}

// Register adds value to the registry under test. See the package
// documentation for the accepted test types.
func (r *Registry[T]) Register(test any, value T, opts ...RegisterOption) (*Handle, error) {
	pred, err := ToPredicate(test)
	if err != nil {
		return nil, err
	}
	return r.add(pred, value, opts...), nil
}

// MustRegister is Register that panics on an invalid test.
func (r *Registry[T]) MustRegister(test any, value T, opts ...RegisterOption) *Handle {
	h, err := r.Register(test, value, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

func (r *Registry[T]) add(pred Predicate, value T, opts ...RegisterOption) *Handle {
	var o registerOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	e := &entry[T]{test: pred, value: value}

	r.mu.Lock()
	// Copy on write: snapshots handed out by Match keep their backing array.
	next := make([]*entry[T], 0, len(r.entries)+1)
	if o.prepend {
		next = append(next, e)
		next = append(next, r.entries...)
	} else {
		next = append(next, r.entries...)
		next = append(next, e)
	}
	r.entries = next
	r.mu.Unlock()

	return &Handle{remove: func() { r.remove(e) }}
}

// remove drops every occurrence of e, compared by identity.
func (r *Registry[T]) remove(e *entry[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]*entry[T], 0, len(r.entries))
	for _, cur := range r.entries {
		if cur != e {
			next = append(next, cur)
		}
	}
	r.entries = next
}

func (r *Registry[T]) snapshot() []*entry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries
}

// Lookup returns the value of the first entry matching args. The default
// value is not consulted.
func (r *Registry[T]) Lookup(args ...any) (T, bool) {
	for _, e := range r.snapshot() {
		if e.test(args...) {
			return e.value, true
		}
	}
	var zero T
	return zero, false
}

// Match returns the value of the first entry matching args, or the default
// value. Without a default it fails with *NoMatchError.
func (r *Registry[T]) Match(args ...any) (T, error) {
	if v, ok := r.Lookup(args...); ok {
		return v, nil
	}
	if r.hasDefault {
		return r.defaultValue, nil
	}
	var zero T
	return zero, &NoMatchError{Args: args}
}

// Default returns the default value and whether one was configured.
func (r *Registry[T]) Default() (T, bool) {
	return r.defaultValue, r.hasDefault
}

// Len returns the number of registered entries.
func (r *Registry[T]) Len() int {
	return len(r.snapshot())
}

// ToPredicate normalizes a string, *regexp.Regexp or predicate function into
// a Predicate over the match arguments.
func ToPredicate(test any) (Predicate, error) {
	switch t := test.(type) {
	case string:
		return func(args ...any) bool {
			if len(args) == 0 {
				return false
			}
			s, ok := args[0].(string)
			return ok && s == t
		}, nil
	case *regexp.Regexp:
		if t == nil {
			return nil, &ParameterError{Param: "test", Message: "nil pattern"}
		}
		return func(args ...any) bool {
			if len(args) == 0 {
				return false
			}
			s, ok := args[0].(string)
			return ok && t.MatchString(s)
		}, nil
	case Predicate:
		if t == nil {
			return nil, &ParameterError{Param: "test", Message: "nil predicate"}
		}
		return t, nil
	case func(args ...any) bool:
		if t == nil {
			return nil, &ParameterError{Param: "test", Message: "nil predicate"}
		}
		return t, nil
	case nil:
		return nil, &ParameterError{Param: "test", Message: "test is required"}
	default:
		return nil, &ParameterError{Param: "test", Message: fmt.Sprintf("unsupported type %T", test)}
	}
}
