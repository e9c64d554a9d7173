package request

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu      sync.Mutex
	names   []string
	success []bool
}

func (f *fakeRecorder) RecordLatency(d time.Duration, name string, success bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	f.success = append(f.success, success)
}

func staticLoader(p Provider) ProviderLoader {
	return func(ctx context.Context) (Provider, error) { return p, nil }
}

func jsonProvider(body string) Provider {
	return func(ctx context.Context, url string, opts *Options) (*Response, error) {
		return &Response{
			Data:       body,
			StatusCode: http.StatusOK,
			StatusText: "200 OK",
			URL:        url,
			Options:    opts,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
		}, nil
	}
}

func TestDispatcher_JSONFilter(t *testing.T) {
	d := New(staticLoader(jsonProvider(`{"foo":"bar"}`)))

	resp, err := d.Get(context.Background(), "http://x.test/foo.json", &Options{ResponseType: "json"}).Wait()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"foo": "bar"}, resp.Data)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "200 OK", resp.StatusText)
	assert.Equal(t, "http://x.test/foo.json", resp.URL)
	assert.Equal(t, "application/json", resp.GetHeader("content-type"))
	assert.Equal(t, http.MethodGet, resp.Options.Method)
}

func TestDispatcher_TextByDefault(t *testing.T) {
	d := New(staticLoader(jsonProvider(`{"foo":"bar"}`)))

	resp, err := d.Do(context.Background(), "http://x.test/foo.json", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"foo":"bar"}`, resp.Data)
}

func TestDispatcher_CustomFilter(t *testing.T) {
	d := New(staticLoader(jsonProvider(`{"foo":"bar"}`)))
	h := d.Filters().MustRegister(regexp.MustCompile(`foo\.json$`), func(ctx context.Context, resp *Response, url string, opts *Options) (interface{}, error) {
		return "filtered:" + resp.Data.(string), nil
	})

	resp, err := d.Do(context.Background(), "http://x.test/foo.json", nil)
	require.NoError(t, err)
	assert.Equal(t, `filtered:{"foo":"bar"}`, resp.Data)

	h.Destroy()
	resp, err = d.Do(context.Background(), "http://x.test/foo.json", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"foo":"bar"}`, resp.Data)
}

func TestDispatcher_RegisteredProviderSkipsBootstrap(t *testing.T) {
	var loads atomic.Int64
	d := New(func(ctx context.Context) (Provider, error) {
		loads.Add(1)
		return jsonProvider(`"default"`), nil
	})
	_, err := d.Providers().Register("http://mock.test/", jsonProvider(`"mock"`))
	require.NoError(t, err)

	resp, err := d.Do(context.Background(), "http://mock.test/", nil)
	require.NoError(t, err)
	assert.Equal(t, `"mock"`, resp.Data)
	assert.Zero(t, loads.Load())
	assert.Equal(t, 0, d.Providers().Loads())
}

func TestDispatcher_MethodHelpers(t *testing.T) {
	var methods []string
	var mu sync.Mutex
	p := func(ctx context.Context, url string, opts *Options) (*Response, error) {
		mu.Lock()
		methods = append(methods, opts.Method)
		mu.Unlock()
		return &Response{Data: "", StatusCode: 200, URL: url, Options: opts}, nil
	}
	d := New(staticLoader(p))

	opts := &Options{Headers: map[string]string{"X-A": "1"}}
	ctx := context.Background()
	_, err := d.Get(ctx, "u", opts).Wait()
	require.NoError(t, err)
	_, err = d.Post(ctx, "u", opts).Wait()
	require.NoError(t, err)
	_, err = d.Put(ctx, "u", opts).Wait()
	require.NoError(t, err)
	_, err = d.Delete(ctx, "u", nil).Wait()
	require.NoError(t, err)

	assert.Equal(t, []string{"GET", "POST", "PUT", "DELETE"}, methods)
	// The caller's options are not modified.
	assert.Empty(t, opts.Method)
}

func TestDispatcher_TransportError(t *testing.T) {
	boom := errors.New("connection refused")
	d := New(staticLoader(func(ctx context.Context, url string, opts *Options) (*Response, error) {
		return nil, boom
	}))

	_, err := d.Do(context.Background(), "http://down.test/", nil)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "http://down.test/", transportErr.URL)
}

func TestDispatcher_TransportErrorCarriesResponse(t *testing.T) {
	partial := &Response{StatusCode: 500, Data: "oops"}
	d := New(staticLoader(func(ctx context.Context, url string, opts *Options) (*Response, error) {
		return nil, &TransportError{URL: url, Response: partial}
	}))

	_, err := d.Do(context.Background(), "u", nil)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Same(t, partial, transportErr.Response)
	assert.Contains(t, err.Error(), "500")
}

func TestDispatcher_NilResponse(t *testing.T) {
	d := New(staticLoader(func(ctx context.Context, url string, opts *Options) (*Response, error) {
		return nil, nil
	}))
	_, err := d.Do(context.Background(), "u", nil)
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestDispatcher_FilterError(t *testing.T) {
	d := New(staticLoader(jsonProvider(`<not>JSON</not>`)))

	_, err := d.Do(context.Background(), "u", &Options{ResponseType: "json"})
	var filterErr *FilterError
	require.ErrorAs(t, err, &filterErr)
	require.NotNil(t, filterErr.Response)
	assert.Equal(t, http.StatusOK, filterErr.Response.StatusCode)

	boom := errors.New("boom")
	d.Filters().MustRegister("v", func(ctx context.Context, resp *Response, url string, opts *Options) (interface{}, error) {
		return nil, boom
	})
	_, err = d.Do(context.Background(), "v", nil)
	require.ErrorAs(t, err, &filterErr)
	assert.ErrorIs(t, err, boom)
}

func TestDispatcher_LoadErrorPropagates(t *testing.T) {
	d := New(func(ctx context.Context) (Provider, error) {
		return nil, errors.New("unknown environment or loader")
	})
	_, err := d.Get(context.Background(), "u", nil).Wait()
	var loadErr *ProviderLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestDispatcher_CancelDuringBootstrap(t *testing.T) {
	var calls atomic.Int64
	loader := newGatedLoader(echoProvider("default", &calls))
	d := New(loader.Load)

	tk := d.Get(context.Background(), "u", nil)
	require.Eventually(t, func() bool { return loader.loads.Load() == 1 }, time.Second, time.Millisecond)
	tk.Cancel()

	_, err := tk.Wait()
	assert.ErrorIs(t, err, context.Canceled)

	close(loader.release)
	require.Eventually(t, d.Providers().Resolved, time.Second, time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestDispatcher_ConcurrentRequestsShareLoad(t *testing.T) {
	var calls atomic.Int64
	loader := newGatedLoader(echoProvider("default", &calls))
	d := New(loader.Load)

	first := d.Get(context.Background(), "http://one.test/", nil)
	second := d.Get(context.Background(), "http://two.test/", nil)

	require.Eventually(t, func() bool { return loader.loads.Load() == 1 }, time.Second, time.Millisecond)
	close(loader.release)

	r1, err := first.Wait()
	require.NoError(t, err)
	r2, err := second.Wait()
	require.NoError(t, err)

	assert.Equal(t, "default:http://one.test/", r1.Data)
	assert.Equal(t, "default:http://two.test/", r2.Data)
	assert.Equal(t, int64(1), loader.loads.Load())
	assert.Equal(t, int64(2), calls.Load())
}

func TestDispatcher_Recorder(t *testing.T) {
	rec := &fakeRecorder{}
	d := New(staticLoader(jsonProvider(`bad`)), WithRecorder(rec))

	_, err := d.Post(context.Background(), "u", nil).Wait()
	require.NoError(t, err)
	_, err = d.Get(context.Background(), "u", &Options{ResponseType: "json"}).Wait()
	require.Error(t, err)

	assert.Equal(t, []string{"POST", "GET"}, rec.names)
	assert.Equal(t, []bool{true, false}, rec.success)
}

func TestNewDispatcher_ExplicitRegistries(t *testing.T) {
	providers := NewProviderRegistry(staticLoader(jsonProvider(`{"a":1}`)))
	d := NewDispatcher(providers, nil)

	resp, err := d.Do(context.Background(), "u", &Options{ResponseType: "json"})
	require.NoError(t, err)
	// No JSON filter unless registered.
	assert.Equal(t, `{"a":1}`, resp.Data)
	assert.Same(t, providers, d.Providers())
}

func TestOptions_Clone(t *testing.T) {
	var nilOpts *Options
	assert.NotNil(t, nilOpts.Clone())

	orig := &Options{
		Headers: map[string]string{"A": "1"},
		Query:   map[string][]string{"q": {"x"}},
	}
	c := orig.Clone()
	c.Headers["A"] = "2"
	c.Query["q"][0] = "y"
	assert.Equal(t, "1", orig.Headers["A"])
	assert.Equal(t, "x", orig.Query.Get("q"))
}
