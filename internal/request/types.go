package request

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Options configures a single request. Providers and filters interpret the
// fields; the dispatcher only sets Method for the verb helpers.
type Options struct {
	Method       string
	Headers      map[string]string
	Query        url.Values
	Data         interface{}
	Auth         string // "user:password"
	User         string
	Password     string
	Timeout      time.Duration
	ResponseType string
	CacheBust    bool
}

// Clone returns a copy of o whose maps can be modified independently.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	c := *o
	if o.Headers != nil {
		c.Headers = make(map[string]string, len(o.Headers))
		for k, v := range o.Headers {
			c.Headers[k] = v
		}
	}
	if o.Query != nil {
		c.Query = make(url.Values, len(o.Query))
		for k, v := range o.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	return &c
}

// TimingInfo contains detailed timing information for a request
type TimingInfo struct {
	StartTime           time.Time
	DNSLookupTime       time.Duration
	TCPConnectTime      time.Duration
	TLSHandshakeTime    time.Duration
	TimeToFirstByte     time.Duration
	ContentTransferTime time.Duration
	TotalTime           time.Duration
}

// Response is the result of a request. Data holds the provider's payload
// until a filter replaces it.
type Response struct {
	Data       interface{}
	StatusCode int
	StatusText string
	URL        string
	Options    *Options
	Header     http.Header
	Native     interface{}
	Timing     TimingInfo
}

// GetHeader returns the value of the specified header
func (r *Response) GetHeader(name string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(name)
}

// IsSuccess returns true if the response status code is in the 2xx range
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsRedirect returns true if the response status code is in the 3xx range
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// Provider performs a request. It must honor ctx cancellation and return a
// *TransportError on transport or HTTP-level failure.
type Provider func(ctx context.Context, url string, opts *Options) (*Response, error)

// ProviderTest selects a provider for a request.
type ProviderTest func(url string, opts *Options) bool

// ProviderLoader resolves the environment's default provider.
type ProviderLoader func(ctx context.Context) (Provider, error)

// Filter post-processes a response and returns its new data payload.
type Filter func(ctx context.Context, resp *Response, url string, opts *Options) (interface{}, error)

// FilterTest selects a filter for a response.
type FilterTest func(resp *Response, url string, opts *Options) bool
