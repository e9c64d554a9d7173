package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/courier/internal/metrics"
	"github.com/wesleyorama2/courier/internal/request"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat converts a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// FormatProvider is an interface for different output formatters
type FormatProvider interface {
	FormatRequest(url string, opts *request.Options) string
	FormatResponse(resp *request.Response) string
	FormatSummary(s metrics.Snapshot) string
	FormatError(err error) string
}

// RequestData represents the structured data of a request
type RequestData struct {
	Method    string            `json:"method" yaml:"method"`
	URL       string            `json:"url" yaml:"url"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body      interface{}       `json:"body,omitempty" yaml:"body,omitempty"`
	Timestamp string            `json:"timestamp" yaml:"timestamp"`
}

// TimingData represents detailed timing information for a request
type TimingData struct {
	DNSLookup       int64 `json:"dnsLookupMs,omitempty" yaml:"dnsLookupMs,omitempty"`
	TCPConnection   int64 `json:"tcpConnectionMs,omitempty" yaml:"tcpConnectionMs,omitempty"`
	TLSHandshake    int64 `json:"tlsHandshakeMs,omitempty" yaml:"tlsHandshakeMs,omitempty"`
	TimeToFirstByte int64 `json:"timeToFirstByteMs,omitempty" yaml:"timeToFirstByteMs,omitempty"`
	ContentTransfer int64 `json:"contentTransferMs,omitempty" yaml:"contentTransferMs,omitempty"`
	Total           int64 `json:"totalMs" yaml:"totalMs"`
}

// ResponseData represents the structured data of a response
type ResponseData struct {
	URL        string            `json:"url,omitempty" yaml:"url,omitempty"`
	StatusCode int               `json:"statusCode" yaml:"statusCode"`
	Status     string            `json:"status,omitempty" yaml:"status,omitempty"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Data       interface{}       `json:"data,omitempty" yaml:"data,omitempty"`
	Timing     *TimingData       `json:"timing,omitempty" yaml:"timing,omitempty"`
	Timestamp  string            `json:"timestamp" yaml:"timestamp"`
}

// ErrorData represents a failed request
type ErrorData struct {
	Error      string `json:"error" yaml:"error"`
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`
	StatusCode int    `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
}

// NewRequestData builds the structured form of a request.
func NewRequestData(url string, opts *request.Options) RequestData {
	if opts == nil {
		opts = &request.Options{}
	}
	return RequestData{
		Method:    methodOf(opts),
		URL:       requestURL(url, opts),
		Headers:   opts.Headers,
		Body:      structuredData(opts.Data),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// NewResponseData builds the structured form of a response. Timing is
// included when verbose is set.
func NewResponseData(resp *request.Response, verbose bool) ResponseData {
	data := ResponseData{
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Status:     resp.StatusText,
		Data:       structuredData(resp.Data),
		Timestamp:  time.Now().Format(time.RFC3339),
	}
	if verbose {
		headers := make(map[string]string, len(resp.Header))
		for key, values := range resp.Header {
			if len(values) > 0 {
				headers[key] = values[0]
			}
		}
		data.Headers = headers
		t := resp.Timing
		data.Timing = &TimingData{
			DNSLookup:       t.DNSLookupTime.Milliseconds(),
			TCPConnection:   t.TCPConnectTime.Milliseconds(),
			TLSHandshake:    t.TLSHandshakeTime.Milliseconds(),
			TimeToFirstByte: t.TimeToFirstByte.Milliseconds(),
			ContentTransfer: t.ContentTransferTime.Milliseconds(),
			Total:           t.TotalTime.Milliseconds(),
		}
	}
	return data
}

// NewErrorData builds the structured form of a failed request.
func NewErrorData(err error) ErrorData {
	data := ErrorData{Error: err.Error()}
	var transportErr *request.TransportError
	var filterErr *request.FilterError
	switch {
	case errors.As(err, &transportErr):
		data.URL = transportErr.URL
		if transportErr.Response != nil {
			data.StatusCode = transportErr.Response.StatusCode
		}
	case errors.As(err, &filterErr):
		data.URL = filterErr.URL
		if filterErr.Response != nil {
			data.StatusCode = filterErr.Response.StatusCode
		}
	}
	return data
}

// structuredData decodes JSON text so it nests in the document instead of
// appearing as an escaped string.
func structuredData(data interface{}) interface{} {
	var raw []byte
	switch d := data.(type) {
	case string:
		raw = []byte(d)
	case []byte:
		raw = d
	default:
		return data
	}
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Verbose bool
	Pretty  bool
}

func (f *JSONFormatter) marshal(v interface{}) string {
	var output []byte
	var err error
	if f.Pretty {
		output, err = json.MarshalIndent(v, "", "  ")
	} else {
		output, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal output: %s"}`, err)
	}
	return string(output) + "\n"
}

// FormatRequest formats a request as JSON
func (f *JSONFormatter) FormatRequest(url string, opts *request.Options) string {
	return f.marshal(NewRequestData(url, opts))
}

// FormatResponse formats a response as JSON
func (f *JSONFormatter) FormatResponse(resp *request.Response) string {
	return f.marshal(NewResponseData(resp, f.Verbose))
}

// FormatSummary formats a latency summary as JSON
func (f *JSONFormatter) FormatSummary(s metrics.Snapshot) string {
	return f.marshal(summaryData(s))
}

// FormatError formats a failed request as JSON
func (f *JSONFormatter) FormatError(err error) string {
	return f.marshal(NewErrorData(err))
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	Verbose bool
}

func (f *YAMLFormatter) marshal(v interface{}) string {
	output, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: failed to marshal output: %s\n", err)
	}
	return "---\n" + string(output)
}

// FormatRequest formats a request as YAML
func (f *YAMLFormatter) FormatRequest(url string, opts *request.Options) string {
	return f.marshal(NewRequestData(url, opts))
}

// FormatResponse formats a response as YAML
func (f *YAMLFormatter) FormatResponse(resp *request.Response) string {
	return f.marshal(NewResponseData(resp, f.Verbose))
}

// FormatSummary formats a latency summary as YAML
func (f *YAMLFormatter) FormatSummary(s metrics.Snapshot) string {
	return f.marshal(summaryData(s))
}

// FormatError formats a failed request as YAML
func (f *YAMLFormatter) FormatError(err error) string {
	return f.marshal(NewErrorData(err))
}

// SummaryData is the structured latency summary; durations are in
// milliseconds.
type SummaryData struct {
	TotalRequests   int64   `json:"totalRequests" yaml:"totalRequests"`
	SuccessRequests int64   `json:"successRequests" yaml:"successRequests"`
	FailedRequests  int64   `json:"failedRequests" yaml:"failedRequests"`
	ErrorRate       float64 `json:"errorRate" yaml:"errorRate"`
	MinMs           float64 `json:"minMs" yaml:"minMs"`
	MeanMs          float64 `json:"meanMs" yaml:"meanMs"`
	MaxMs           float64 `json:"maxMs" yaml:"maxMs"`
	P50Ms           float64 `json:"p50Ms" yaml:"p50Ms"`
	P90Ms           float64 `json:"p90Ms" yaml:"p90Ms"`
	P95Ms           float64 `json:"p95Ms" yaml:"p95Ms"`
	P99Ms           float64 `json:"p99Ms" yaml:"p99Ms"`
}

func summaryData(s metrics.Snapshot) SummaryData {
	toMs := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	l := s.Latency
	return SummaryData{
		TotalRequests:   s.TotalRequests,
		SuccessRequests: s.SuccessRequests,
		FailedRequests:  s.FailedRequests,
		ErrorRate:       s.ErrorRate,
		MinMs:           toMs(l.Min),
		MeanMs:          toMs(l.Mean),
		MaxMs:           toMs(l.Max),
		P50Ms:           toMs(l.P50),
		P90Ms:           toMs(l.P90),
		P95Ms:           toMs(l.P95),
		P99Ms:           toMs(l.P99),
	}
}

// GetFormatter returns the appropriate formatter for the given format
func GetFormatter(format OutputFormat, verbose bool, noColor bool) FormatProvider {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Verbose: verbose, Pretty: true}
	case FormatYAML:
		return &YAMLFormatter{Verbose: verbose}
	default:
		return &Formatter{Verbose: verbose, NoColor: noColor}
	}
}
