package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/courier/internal/config"
	"github.com/wesleyorama2/courier/internal/filters"
	"github.com/wesleyorama2/courier/internal/loader"
	"github.com/wesleyorama2/courier/internal/metrics"
	"github.com/wesleyorama2/courier/internal/output"
	"github.com/wesleyorama2/courier/internal/pace"
	"github.com/wesleyorama2/courier/internal/registry"
	"github.com/wesleyorama2/courier/internal/request"
	"github.com/wesleyorama2/courier/internal/task"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request METHOD URL",
		Short: "Make a request with an arbitrary HTTP method",
		Example: `  courier request PATCH https://api.example.com/users/1 --json '{"name":"ada"}'
  courier request HEAD https://api.example.com/health`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, strings.ToUpper(args[0]), args[1])
		},
	}
	addBodyFlags(cmd)
	return cmd
}

// requestFlags holds the parsed flags shared by the request commands.
type requestFlags struct {
	configPath   string
	env          string
	fixtures     string
	headers      map[string]string
	query        url.Values
	user         string
	timeout      time.Duration
	timeoutSet   bool
	responseType string
	cacheBust    bool
	extract      string
	repeat       int
	rate         float64
	output       string
	noColor      bool
	verbose      bool
	logLevel     string
	data         string
	jsonData     string
}

func readFlags(cmd *cobra.Command) (*requestFlags, error) {
	flags := cmd.Flags()
	f := &requestFlags{}
	f.configPath, _ = flags.GetString("config")
	f.env, _ = flags.GetString("env")
	f.fixtures, _ = flags.GetString("fixtures")
	f.user, _ = flags.GetString("user")
	f.timeout, _ = flags.GetDuration("timeout")
	f.timeoutSet = flags.Changed("timeout")
	f.responseType, _ = flags.GetString("response-type")
	f.cacheBust, _ = flags.GetBool("cache-bust")
	f.extract, _ = flags.GetString("extract")
	f.repeat, _ = flags.GetInt("repeat")
	f.rate, _ = flags.GetFloat64("rate")
	f.output, _ = flags.GetString("output")
	f.noColor, _ = flags.GetBool("no-color")
	f.verbose, _ = flags.GetBool("verbose")
	f.logLevel, _ = flags.GetString("log-level")
	if flags.Lookup("data") != nil {
		f.data, _ = flags.GetString("data")
		f.jsonData, _ = flags.GetString("json")
	}

	headers, _ := flags.GetStringArray("header")
	parsed, err := parseHeaders(headers)
	if err != nil {
		return nil, err
	}
	f.headers = parsed

	query, _ := flags.GetStringArray("query")
	if f.query, err = parseQuery(query); err != nil {
		return nil, err
	}

	if f.repeat < 1 {
		return nil, fmt.Errorf("--repeat must be at least 1")
	}
	if f.rate < 0 {
		return nil, fmt.Errorf("--rate cannot be negative")
	}
	if f.data != "" && f.jsonData != "" {
		return nil, fmt.Errorf("--data and --json are mutually exclusive")
	}
	return f, nil
}

// options builds the request options for method.
func (f *requestFlags) options(method string) *request.Options {
	opts := &request.Options{
		Method:       method,
		Headers:      f.headers,
		Query:        f.query,
		Auth:         f.user,
		ResponseType: f.responseType,
		CacheBust:    f.cacheBust,
	}
	if f.timeoutSet {
		opts.Timeout = f.timeout
	}
	switch {
	case f.data != "":
		opts.Data = f.data
	case f.jsonData != "":
		opts.Data = f.jsonData
		if opts.Headers == nil {
			opts.Headers = map[string]string{}
		}
		if _, ok := opts.Headers["Content-Type"]; !ok {
			opts.Headers["Content-Type"] = "application/json"
		}
	}
	return opts
}

func runRequest(cmd *cobra.Command, method, rawURL string) error {
	f, err := readFlags(cmd)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(f.output)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), f.logLevel)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := cmd.OutOrStdout()
	formatter := output.GetFormatter(format, f.verbose, output.ColorDisabled(out, f.noColor))
	recorder := metrics.NewRecorder()

	d, handles, err := newDispatcher(ctx, f, logger, recorder)
	if err != nil {
		return err
	}
	defer handles.Destroy()

	target := normalizeURL(rawURL)
	if f.extract != "" {
		filter, err := filters.Extract(f.extract)
		if err != nil {
			return fmt.Errorf("invalid --extract: %w", err)
		}
		h, err := d.Filters().Register(target, filter, registry.Prepend())
		if err != nil {
			return err
		}
		defer h.Destroy()
	}

	opts := f.options(method)
	if format == output.FormatText {
		fmt.Fprint(out, formatter.FormatRequest(target, opts))
	}

	if f.repeat == 1 {
		resp, err := dispatch(ctx, d, method, target, opts).WaitContext(ctx)
		if err != nil {
			if format != output.FormatText {
				fmt.Fprint(out, formatter.FormatError(err))
			}
			return err
		}
		fmt.Fprint(out, formatter.FormatResponse(resp))
		return nil
	}

	var last *request.Response
	failures := 0
	pacer := pace.New(f.rate)
	for i := 0; i < f.repeat; i++ {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		resp, err := dispatch(ctx, d, method, target, opts).WaitContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			fmt.Fprint(out, formatter.FormatError(err))
			continue
		}
		last = resp
	}
	if last != nil {
		fmt.Fprint(out, formatter.FormatResponse(last))
	}
	fmt.Fprint(out, formatter.FormatSummary(recorder.Snapshot()))

	if failures > 0 {
		return fmt.Errorf("%d of %d requests failed", failures, f.repeat)
	}
	return nil
}

// newDispatcher wires the default provider loader and the configured
// routes and filters. The returned handles undo the configuration.
func newDispatcher(ctx context.Context, f *requestFlags, logger *slog.Logger, recorder *metrics.Recorder) (*request.Dispatcher, registry.Handles, error) {
	cfg := &config.Config{}
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	lcfg, err := cfg.LoaderConfig(logger)
	if err != nil {
		return nil, nil, err
	}
	if f.env != "" {
		lcfg.Environment = f.env
	}
	if f.fixtures != "" {
		lcfg.Fixtures = f.fixtures
	}
	if lcfg.Timeout == 0 {
		lcfg.Timeout = f.timeout
	}

	ldr := loader.New(lcfg)
	d := request.New(ldr.Load, request.WithLogger(logger), request.WithRecorder(recorder))
	handles, err := cfg.Apply(ctx, d, ldr)
	if err != nil {
		return nil, nil, err
	}
	return d, handles, nil
}

// dispatch sends the request through the verb helper for method.
func dispatch(ctx context.Context, d *request.Dispatcher, method, target string, opts *request.Options) *task.Task[*request.Response] {
	switch method {
	case http.MethodGet:
		return d.Get(ctx, target, opts)
	case http.MethodPost:
		return d.Post(ctx, target, opts)
	case http.MethodPut:
		return d.Put(ctx, target, opts)
	case http.MethodDelete:
		return d.Delete(ctx, target, opts)
	default:
		opts = opts.Clone()
		opts.Method = method
		return d.Request(ctx, target, opts)
	}
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// parseHeaders converts "Key: Value" flags into a header map.
func parseHeaders(headers []string) (map[string]string, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	parsed := make(map[string]string, len(headers))
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid header %q (want \"Key: Value\")", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

// parseQuery converts key=value flags into query values.
func parseQuery(params []string) (url.Values, error) {
	if len(params) == 0 {
		return nil, nil
	}
	values := url.Values{}
	for _, param := range params {
		key, value, ok := strings.Cut(param, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query parameter %q (want key=value)", param)
		}
		values.Add(key, value)
	}
	return values, nil
}
