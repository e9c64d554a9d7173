// Package nethttp provides a request provider backed by net/http.
package nethttp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/courier/internal/request"
)

// ResponseTypeBytes keeps the response body as []byte instead of string.
const ResponseTypeBytes = "bytes"

// Client performs requests for the dispatcher.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	userAgent  string
	now        func() time.Time
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a new HTTP client with the given options
func NewClient(options ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers:   make(map[string]string),
		userAgent: "courier",
		now:       time.Now,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// WithTimeout sets the timeout for the client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHeader adds a header sent with every request
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithHTTPClient replaces the underlying *http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Provider returns the client as a request.Provider.
func (c *Client) Provider() request.Provider {
	return c.Do
}

// Do executes a request and returns the response with timing information.
// Status codes of 400 and above are reported as *request.TransportError
// carrying the response.
func (c *Client) Do(ctx context.Context, rawURL string, opts *request.Options) (*request.Response, error) {
	if opts == nil {
		opts = &request.Options{}
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	httpReq, err := c.build(ctx, rawURL, opts)
	if err != nil {
		return nil, &request.TransportError{URL: rawURL, Err: err}
	}

	timing := request.TimingInfo{StartTime: c.now()}
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), newTrace(&timing)))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &request.TransportError{URL: rawURL, Err: err}
	}
	defer httpResp.Body.Close()

	timing.TotalTime = time.Since(timing.StartTime)

	contentTransferStart := time.Now()
	body, err := io.ReadAll(httpResp.Body)
	timing.ContentTransferTime = time.Since(contentTransferStart)

	resp := &request.Response{
		StatusCode: httpResp.StatusCode,
		StatusText: httpResp.Status,
		URL:        httpReq.URL.String(),
		Options:    opts,
		Header:     httpResp.Header,
		Native:     httpResp,
		Timing:     timing,
	}
	if opts.ResponseType == ResponseTypeBytes {
		resp.Data = body
	} else {
		resp.Data = string(body)
	}

	if err != nil {
		return nil, &request.TransportError{URL: rawURL, Response: resp, Err: fmt.Errorf("reading body: %w", err)}
	}
	if httpResp.StatusCode >= 400 {
		return nil, &request.TransportError{URL: rawURL, Response: resp}
	}
	return resp, nil
}

// build constructs an http.Request from the URL and options
func (c *Client) build(ctx context.Context, rawURL string, opts *request.Options) (*http.Request, error) {
	reqURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	if len(opts.Query) > 0 || opts.CacheBust {
		query := reqURL.Query()
		for key, values := range opts.Query {
			for _, value := range values {
				query.Add(key, value)
			}
		}
		if opts.CacheBust {
			query.Set("_", strconv.FormatInt(c.now().UnixNano(), 10))
		}
		reqURL.RawQuery = query.Encode()
	}

	headers := make(map[string]string, len(c.headers)+len(opts.Headers))
	for key, value := range c.headers {
		headers[key] = value
	}
	for key, value := range opts.Headers {
		headers[key] = value
	}

	bodyReader, contentType, err := encodeBody(opts.Data)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	if user, password, ok := credentials(opts); ok {
		req.SetBasicAuth(user, password)
	}

	return req, nil
}

// encodeBody turns request data into a reader. Values other than string,
// []byte and io.Reader are sent as JSON.
func encodeBody(data interface{}) (io.Reader, string, error) {
	switch body := data.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(body), "", nil
	case []byte:
		return bytes.NewReader(body), "", nil
	case io.Reader:
		return body, "", nil
	case url.Values:
		return strings.NewReader(body.Encode()), "application/x-www-form-urlencoded", nil
	default:
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("encoding body: %w", err)
		}
		return bytes.NewReader(jsonBody), "application/json", nil
	}
}

func credentials(opts *request.Options) (string, string, bool) {
	if opts.User != "" || opts.Password != "" {
		return opts.User, opts.Password, true
	}
	if opts.Auth != "" {
		user, password, _ := strings.Cut(opts.Auth, ":")
		return user, password, true
	}
	return "", "", false
}

// newTrace captures detailed timing information into timing.
func newTrace(timing *request.TimingInfo) *httptrace.ClientTrace {
	var dnsStart, connectStart, tlsHandshakeStart time.Time
	var dnsDone, connectDone bool
	// Tracks the end time of the last completed phase
	lastPhaseEnd := timing.StartTime

	return &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			dnsStart = time.Now()
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			dnsEnd := time.Now()
			timing.DNSLookupTime = dnsEnd.Sub(dnsStart)
			dnsDone = true
			lastPhaseEnd = dnsEnd
		},
		ConnectStart: func(network, addr string) {
			if dnsDone || connectStart.IsZero() {
				connectStart = time.Now()
			}
		},
		ConnectDone: func(network, addr string, err error) {
			if err == nil {
				connectEnd := time.Now()
				timing.TCPConnectTime = connectEnd.Sub(connectStart)
				connectDone = true
				lastPhaseEnd = connectEnd
			}
		},
		TLSHandshakeStart: func() {
			if connectDone {
				tlsHandshakeStart = time.Now()
			}
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err == nil {
				tlsHandshakeEnd := time.Now()
				timing.TLSHandshakeTime = tlsHandshakeEnd.Sub(tlsHandshakeStart)
				lastPhaseEnd = tlsHandshakeEnd
			}
		},
		GotFirstResponseByte: func() {
			timing.TimeToFirstByte = time.Since(lastPhaseEnd)
		},
	}
}
