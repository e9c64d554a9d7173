package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wesleyorama2/courier/internal/metrics"
	"github.com/wesleyorama2/courier/internal/request"
)

// Formatter is responsible for formatting requests and responses in text format
type Formatter struct {
	Verbose bool
	NoColor bool
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose, noColor bool) *Formatter {
	return &Formatter{
		Verbose: verbose,
		NoColor: noColor,
	}
}

// FormatRequest formats an outgoing request for display
func (f *Formatter) FormatRequest(url string, opts *request.Options) string {
	scheme := SchemeFor(f.NoColor)
	if opts == nil {
		opts = &request.Options{}
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "▶ REQUEST: %s %s\n", scheme.Method.Sprint(methodOf(opts)), scheme.URL.Sprint(requestURL(url, opts)))

	if f.Verbose && len(opts.Headers) > 0 {
		buf.WriteString("  Headers:\n")
		for _, key := range sortedKeys(opts.Headers) {
			fmt.Fprintf(&buf, "    %s: %s\n", scheme.HeaderKey.Sprint(key), opts.Headers[key])
		}
	}

	if opts.Data != nil {
		buf.WriteString("  Body: ")
		buf.WriteString(formatData(opts.Data))
		buf.WriteString("\n")
	}

	return buf.String()
}

// FormatResponse formats a response for display
func (f *Formatter) FormatResponse(resp *request.Response) string {
	scheme := SchemeFor(f.NoColor)

	statusColor := scheme.StatusError
	if resp.IsSuccess() {
		statusColor = scheme.StatusOK
	} else if resp.IsRedirect() {
		statusColor = scheme.StatusWarn
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "◀ RESPONSE: %s (%dms)\n", statusColor.Sprint(statusLine(resp)), resp.Timing.TotalTime.Milliseconds())

	if f.Verbose {
		t := resp.Timing
		buf.WriteString("  Timing:\n")
		fmt.Fprintf(&buf, "    DNS Lookup:         %dms\n", t.DNSLookupTime.Milliseconds())
		fmt.Fprintf(&buf, "    TCP Connection:     %dms\n", t.TCPConnectTime.Milliseconds())
		fmt.Fprintf(&buf, "    TLS Handshake:      %dms\n", t.TLSHandshakeTime.Milliseconds())
		fmt.Fprintf(&buf, "    Time to First Byte: %dms\n", t.TimeToFirstByte.Milliseconds())
		fmt.Fprintf(&buf, "    Content Transfer:   %dms\n", t.ContentTransferTime.Milliseconds())
		fmt.Fprintf(&buf, "    Total:              %dms\n", t.TotalTime.Milliseconds())

		if len(resp.Header) > 0 {
			buf.WriteString("  Headers:\n")
			keys := make([]string, 0, len(resp.Header))
			for key := range resp.Header {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				for _, value := range resp.Header[key] {
					fmt.Fprintf(&buf, "    %s: %s\n", scheme.HeaderKey.Sprint(key), value)
				}
			}
		}
	}

	if body := formatData(resp.Data); body != "" {
		buf.WriteString("  Body:\n")
		buf.WriteString(body)
		buf.WriteString("\n")
	}

	return buf.String()
}

// FormatSummary formats the latency summary of repeated requests
func (f *Formatter) FormatSummary(s metrics.Snapshot) string {
	scheme := SchemeFor(f.NoColor)
	l := s.Latency

	var buf strings.Builder
	buf.WriteString(scheme.Highlight.Sprint("Summary") + "\n")
	fmt.Fprintf(&buf, "  Requests: %d (%s %d, %s %d)\n",
		s.TotalRequests,
		SuccessIcon(f.NoColor), s.SuccessRequests,
		ErrorIcon(f.NoColor), s.FailedRequests)
	fmt.Fprintf(&buf, "  Error rate: %.2f%%\n", s.ErrorRate*100)
	fmt.Fprintf(&buf, "  Latency: min %s  mean %s  max %s\n", ms(l.Min), ms(l.Mean), ms(l.Max))
	fmt.Fprintf(&buf, "  Percentiles: p50 %s  p90 %s  p95 %s  p99 %s\n", ms(l.P50), ms(l.P90), ms(l.P95), ms(l.P99))
	return buf.String()
}

// FormatError formats a failed request for display
func (f *Formatter) FormatError(err error) string {
	scheme := SchemeFor(f.NoColor)
	return fmt.Sprintf("%s %s\n", ErrorIcon(f.NoColor), scheme.Error.Sprint(err.Error()))
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}

func statusLine(resp *request.Response) string {
	if resp.StatusText == "" {
		return fmt.Sprintf("%d", resp.StatusCode)
	}
	if strings.HasPrefix(resp.StatusText, fmt.Sprintf("%d", resp.StatusCode)) {
		return resp.StatusText
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, resp.StatusText)
}

func methodOf(opts *request.Options) string {
	if opts.Method == "" {
		return "GET"
	}
	return strings.ToUpper(opts.Method)
}

func requestURL(url string, opts *request.Options) string {
	if len(opts.Query) == 0 {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + opts.Query.Encode()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatData renders a payload, pretty-printing JSON where possible.
func formatData(data interface{}) string {
	switch d := data.(type) {
	case nil:
		return ""
	case string:
		return formatJSONString(d)
	case []byte:
		return formatJSONString(string(d))
	default:
		b, err := json.MarshalIndent(d, "  ", "  ")
		if err != nil {
			return fmt.Sprintf("  %v", d)
		}
		return "  " + string(b)
	}
}

// formatJSONString attempts to pretty-print a JSON string
func formatJSONString(s string) string {
	var prettyJSON bytes.Buffer
	err := json.Indent(&prettyJSON, []byte(s), "  ", "  ")
	if err != nil {
		return s
	}
	return "  " + prettyJSON.String()
}
