package request

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/courier/internal/registry"
)

// echoProvider answers every request with its own URL as data.
func echoProvider(name string, calls *atomic.Int64) Provider {
	return func(ctx context.Context, url string, opts *Options) (*Response, error) {
		if calls != nil {
			calls.Add(1)
		}
		return &Response{Data: name + ":" + url, StatusCode: 200, URL: url, Options: opts}, nil
	}
}

// gatedLoader blocks every load until release is closed.
type gatedLoader struct {
	release  chan struct{}
	loads    atomic.Int64
	provider Provider
	err      error
}

func newGatedLoader(p Provider) *gatedLoader {
	return &gatedLoader{release: make(chan struct{}), provider: p}
}

func (l *gatedLoader) Load(ctx context.Context) (Provider, error) {
	l.loads.Add(1)
	<-l.release
	return l.provider, l.err
}

func TestProviderRegistry_RegisterKinds(t *testing.T) {
	r := NewProviderRegistry(nil)
	_, err := r.Register("http://exact.test/a", echoProvider("exact", nil))
	require.NoError(t, err)
	_, err = r.Register(regexp.MustCompile(`^https://`), echoProvider("secure", nil))
	require.NoError(t, err)
	_, err = r.Register(func(url string, opts *Options) bool {
		return opts != nil && opts.Method == "POST"
	}, echoProvider("post", nil))
	require.NoError(t, err)

	tests := []struct {
		url  string
		opts *Options
		want string
	}{
		{url: "http://exact.test/a", want: "exact"},
		{url: "https://secure.test/", want: "secure"},
		{url: "http://other.test/", opts: &Options{Method: "POST"}, want: "post"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			resp, err := r.Match(tt.url, tt.opts)(context.Background(), tt.url, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want+":"+tt.url, resp.Data)
		})
	}

	assert.Equal(t, 3, r.Len())
}

func TestProviderRegistry_RegisterInvalid(t *testing.T) {
	r := NewProviderRegistry(nil)
	var paramErr *registry.ParameterError

	_, err := r.Register(42, echoProvider("x", nil))
	assert.ErrorAs(t, err, &paramErr)

	_, err = r.Register("u", nil)
	assert.ErrorAs(t, err, &paramErr)

	_, err = r.Register(ProviderTest(nil), echoProvider("x", nil))
	assert.ErrorAs(t, err, &paramErr)
}

func TestProviderRegistry_PrependAndDestroy(t *testing.T) {
	r := NewProviderRegistry(nil)
	r.Register("u", echoProvider("first", nil))
	h, err := r.Register("u", echoProvider("second", nil), registry.Prepend())
	require.NoError(t, err)

	resp, _ := r.Match("u", nil)(context.Background(), "u", nil)
	assert.Equal(t, "second:u", resp.Data)

	h.Destroy()
	h.Destroy()
	resp, _ = r.Match("u", nil)(context.Background(), "u", nil)
	assert.Equal(t, "first:u", resp.Data)
}

func TestProviderRegistry_SingleLoadForQueuedRequests(t *testing.T) {
	var calls atomic.Int64
	loader := newGatedLoader(echoProvider("default", &calls))
	r := NewProviderRegistry(loader.Load)

	type result struct {
		resp *Response
		err  error
	}
	results := make([]chan result, 2)
	urls := []string{"http://one.test/", "http://two.test/"}
	for i, url := range urls {
		results[i] = make(chan result, 1)
		go func(i int, url string) {
			resp, err := r.Match(url, nil)(context.Background(), url, nil)
			results[i] <- result{resp, err}
		}(i, url)
	}

	require.Eventually(t, func() bool { return loader.loads.Load() == 1 }, time.Second, time.Millisecond)
	// A third request joins the same in-flight load.
	third := make(chan result, 1)
	go func() {
		resp, err := r.Default()(context.Background(), "http://three.test/", nil)
		third <- result{resp, err}
	}()

	assert.False(t, r.Resolved())
	close(loader.release)

	for i, url := range urls {
		res := <-results[i]
		require.NoError(t, res.err)
		assert.Equal(t, "default:"+url, res.resp.Data)
	}
	res := <-third
	require.NoError(t, res.err)
	assert.Equal(t, "default:http://three.test/", res.resp.Data)

	assert.Equal(t, int64(1), loader.loads.Load())
	assert.Equal(t, 1, r.Loads())
	assert.Equal(t, int64(3), calls.Load())
	assert.True(t, r.Resolved())
}

func TestProviderRegistry_ResolvedBypassesBootstrap(t *testing.T) {
	var providerCalls atomic.Int64
	loads := 0
	r := NewProviderRegistry(func(ctx context.Context) (Provider, error) {
		loads++
		return echoProvider("default", &providerCalls), nil
	})

	_, err := r.Match("u", nil)(context.Background(), "u", nil)
	require.NoError(t, err)
	require.True(t, r.Resolved())

	// From here on Match hands out the concrete provider itself.
	p := r.Match("u", nil)
	resp, err := p(context.Background(), "v", nil)
	require.NoError(t, err)
	assert.Equal(t, "default:v", resp.Data)
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, r.Loads())
}

func TestProviderRegistry_LoadFailureRetries(t *testing.T) {
	boom := errors.New("unknown environment")
	var attempts atomic.Int64
	r := NewProviderRegistry(func(ctx context.Context) (Provider, error) {
		if attempts.Add(1) == 1 {
			return nil, boom
		}
		return echoProvider("default", nil), nil
	})

	_, err := r.Match("u", nil)(context.Background(), "u", nil)
	var loadErr *ProviderLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, boom)
	assert.False(t, r.Resolved())

	resp, err := r.Match("u", nil)(context.Background(), "u", nil)
	require.NoError(t, err)
	assert.Equal(t, "default:u", resp.Data)
	assert.Equal(t, 2, r.Loads())
}

func TestProviderRegistry_LoadFailureReachesAllWaiters(t *testing.T) {
	loader := newGatedLoader(nil)
	loader.err = &ProviderLoadError{Env: "mars", Err: errors.New("unknown environment")}
	r := NewProviderRegistry(loader.Load)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Default()(context.Background(), "u", nil)
		}(i)
	}

	require.Eventually(t, func() bool { return loader.loads.Load() == 1 }, time.Second, time.Millisecond)
	close(loader.release)
	wg.Wait()

	for _, err := range errs {
		var loadErr *ProviderLoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, "mars", loadErr.Env)
	}
}

func TestProviderRegistry_NilLoader(t *testing.T) {
	r := NewProviderRegistry(nil)
	_, err := r.Match("u", nil)(context.Background(), "u", nil)
	var loadErr *ProviderLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestProviderRegistry_LoaderPanic(t *testing.T) {
	r := NewProviderRegistry(func(ctx context.Context) (Provider, error) {
		panic("bad module")
	})
	_, err := r.Default()(context.Background(), "u", nil)
	var loadErr *ProviderLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "bad module")
}

func TestProviderRegistry_CancelWhileQueued(t *testing.T) {
	var calls atomic.Int64
	loader := newGatedLoader(echoProvider("default", &calls))
	r := NewProviderRegistry(loader.Load)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Default()(ctx, "u", nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return loader.loads.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// The load itself is unaffected by the cancelled caller.
	close(loader.release)
	require.Eventually(t, r.Resolved, time.Second, time.Millisecond)
	assert.Equal(t, int64(0), calls.Load())

	resp, err := r.Default()(context.Background(), "v", nil)
	require.NoError(t, err)
	assert.Equal(t, "default:v", resp.Data)
}

func TestProviderRegistry_CancelAfterProviderStarted(t *testing.T) {
	started := make(chan struct{})
	slow := func(ctx context.Context, url string, opts *Options) (*Response, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r := NewProviderRegistry(func(ctx context.Context) (Provider, error) { return slow, nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Default()(ctx, "u", nil)
		done <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
