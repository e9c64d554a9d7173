package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "courier",
		Short:   "A pluggable HTTP request dispatcher for the terminal",
		Version: version,
		Long: `Courier sends HTTP requests through a registry of providers and response
filters. Requests are routed to the live network or to recorded fixtures, and
responses can be decoded, validated against a JSON Schema or reduced with a
JSONPath expression before they are printed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file with routes and filters (JSON or YAML)")
	flags.StringP("env", "e", "", "Environment for the default provider (net, replay)")
	flags.String("fixtures", "", "Fixtures file for the replay environment")
	flags.StringArrayP("header", "H", []string{}, "HTTP headers to include (can be used multiple times)")
	flags.StringArrayP("query", "q", []string{}, "Query parameters as key=value (can be used multiple times)")
	flags.StringP("user", "u", "", "Basic auth credentials as user:password")
	flags.DurationP("timeout", "t", 30*time.Second, "Request timeout")
	flags.StringP("response-type", "r", "", "Response type: json decodes the body, bytes keeps it raw")
	flags.Bool("cache-bust", false, "Append a cache-busting query parameter")
	flags.String("extract", "", "JSONPath expression applied to the response (e.g. $.items[0].id)")
	flags.IntP("repeat", "n", 1, "Send the request N times and print a latency summary")
	flags.Float64("rate", 0, "Requests per second when repeating (0 sends back to back)")
	flags.StringP("output", "o", "text", "Output format (text, json, yaml)")
	flags.Bool("no-color", false, "Disable colored output")
	flags.BoolP("verbose", "v", false, "Enable verbose output")
	flags.String("log-level", "warn", "Log level for diagnostics on stderr (debug, info, warn, error)")

	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newPostCmd())
	rootCmd.AddCommand(newPutCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newRequestCmd())
	rootCmd.AddCommand(newValidateCmd())
	return rootCmd
}

// Execute runs the command tree against os.Args. It is called by main.main().
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext is Execute with a context that cancels in-flight requests.
func ExecuteContext(ctx context.Context) error {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
