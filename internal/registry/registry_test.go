package registry

import (
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringTest(value string) Predicate {
	return func(args ...any) bool {
		return len(args) > 0 && args[0] == value
	}
}

func TestRegistry_Match(t *testing.T) {
	r := New[string]()
	_, err := r.Register(func(args ...any) bool {
		return args[0] == "foo"
	}, "handler")
	require.NoError(t, err)

	v, err := r.Match("foo")
	require.NoError(t, err)
	assert.Equal(t, "handler", v)

	_, err = r.Match("bar")
	var noMatch *NoMatchError
	require.ErrorAs(t, err, &noMatch)
	assert.Equal(t, []any{"bar"}, noMatch.Args)
	assert.Contains(t, err.Error(), "bar")
}

func TestRegistry_FirstRegisteredWins(t *testing.T) {
	r := New[int]()
	r.MustRegister(stringTest("foo"), 1)
	r.MustRegister(stringTest("foo"), 2)
	r.MustRegister(stringTest("bar"), 3)

	v, err := r.Match("foo")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = r.Match("bar")
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestRegistry_Prepend(t *testing.T) {
	r := New[int]()
	r.MustRegister("foo", 1)
	second := r.MustRegister("foo", 2, Prepend())

	v, _ := r.Match("foo")
	assert.Equal(t, 2, v)

	r.MustRegister("foo", 3, PrependIf(true))
	v, _ = r.Match("foo")
	assert.Equal(t, 3, v)

	r.MustRegister("foo", 4, PrependIf(false))
	v, _ = r.Match("foo")
	assert.Equal(t, 3, v)

	second.Destroy()
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_DestroyRestoresEarlierEntry(t *testing.T) {
	r := New[int]()
	r.MustRegister("foo", 1)
	h := r.MustRegister("foo", 2, Prepend())

	v, _ := r.Match("foo")
	assert.Equal(t, 2, v)

	h.Destroy()
	v, err := r.Match("foo")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestRegistry_DestroyIsIdempotent(t *testing.T) {
	r := NewWithDefault(2)
	h := r.MustRegister(stringTest("foo"), 1)
	other := r.MustRegister(stringTest("baz"), 5)

	v, _ := r.Match("foo")
	assert.Equal(t, 1, v)

	for i := 0; i < 5; i++ {
		assert.NotPanics(t, h.Destroy)
	}

	v, _ = r.Match("foo")
	assert.Equal(t, 2, v)
	v, _ = r.Match("baz")
	assert.Equal(t, 5, v)
	assert.Equal(t, 1, r.Len())

	other.Destroy()
	assert.Equal(t, 0, r.Len())

	var nilHandle *Handle
	assert.NotPanics(t, nilHandle.Destroy)
}

func TestRegistry_DestroyByIdentity(t *testing.T) {
	// Equal values registered twice are distinct entries.
	r := New[string]()
	first := r.MustRegister("foo", "same")
	r.MustRegister("foo", "same")

	first.Destroy()
	assert.Equal(t, 1, r.Len())
	v, err := r.Match("foo")
	require.NoError(t, err)
	assert.Equal(t, "same", v)
}

func TestRegistry_Default(t *testing.T) {
	r := NewWithDefault("foo")
	v, err := r.Match("bar")
	require.NoError(t, err)
	assert.Equal(t, "foo", v)

	d, ok := r.Default()
	assert.True(t, ok)
	assert.Equal(t, "foo", d)

	_, ok = New[string]().Default()
	assert.False(t, ok)
}

func TestRegistry_LookupIgnoresDefault(t *testing.T) {
	r := NewWithDefault("fallback")
	_, ok := r.Lookup("anything")
	assert.False(t, ok)
}

func TestRegistry_TestKinds(t *testing.T) {
	tests := []struct {
		name  string
		test  any
		args  []any
		match bool
	}{
		{name: "string equal", test: "foo", args: []any{"foo"}, match: true},
		{name: "string differs", test: "foo", args: []any{"foobar"}, match: false},
		{name: "string non-string arg", test: "1", args: []any{1}, match: false},
		{name: "string no args", test: "foo", args: nil, match: false},
		{name: "pattern match", test: regexp.MustCompile(`\.json$`), args: []any{"/data/foo.json"}, match: true},
		{name: "pattern miss", test: regexp.MustCompile(`\.json$`), args: []any{"/data/foo.xml"}, match: false},
		{name: "pattern non-string arg", test: regexp.MustCompile(`.*`), args: []any{42}, match: false},
		{name: "predicate full tuple", test: Predicate(func(args ...any) bool {
			return len(args) == 2 && args[1] == "json"
		}), args: []any{"u", "json"}, match: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New[bool]()
			r.MustRegister(tt.test, true)
			_, ok := r.Lookup(tt.args...)
			assert.Equal(t, tt.match, ok)
		})
	}
}

func TestRegistry_InvalidTest(t *testing.T) {
	tests := []struct {
		name string
		test any
	}{
		{name: "nil", test: nil},
		{name: "int", test: 42},
		{name: "nil pattern", test: (*regexp.Regexp)(nil)},
		{name: "nil predicate", test: Predicate(nil)},
		{name: "wrong func signature", test: func(s string) bool { return true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New[int]()
			h, err := r.Register(tt.test, 1)
			assert.Nil(t, h)
			var paramErr *ParameterError
			require.True(t, errors.As(err, &paramErr), "expected ParameterError, got %v", err)
			assert.Equal(t, 0, r.Len())
		})
	}

	assert.Panics(t, func() { New[int]().MustRegister(3.14, 1) })
}

func TestRegistry_MatchUsesSnapshot(t *testing.T) {
	r := New[int]()
	var late *Handle
	r.MustRegister(func(args ...any) bool {
		// Mutations from inside a predicate must not affect this match.
		late = r.MustRegister("foo", 99, Prepend())
		return false
	}, 1)
	r.MustRegister("foo", 2)

	v, err := r.Match("foo")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	late.Destroy()
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewWithDefault(-1)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			h := r.MustRegister("foo", i)
			h.Destroy()
		}(i)
		go func() {
			defer wg.Done()
			_, err := r.Match("foo")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}
