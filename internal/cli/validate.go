package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/courier/internal/config"
	"github.com/wesleyorama2/courier/internal/loader"
	"github.com/wesleyorama2/courier/internal/output"
	"github.com/wesleyorama2/courier/internal/request"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate CONFIG",
		Short: "Check a config file, its fixtures and its schemas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noColorFlag, _ := cmd.Flags().GetBool("no-color")
			out := cmd.OutOrStdout()
			noColor := output.ColorDisabled(out, noColorFlag)
			path := args[0]

			cfg, err := config.LoadConfig(path)
			if err != nil {
				var errs config.Errors
				if !errors.As(err, &errs) {
					return err
				}
				for _, e := range errs {
					fmt.Fprintf(out, "%s %s\n", output.ErrorIcon(noColor), e.Error())
				}
				return fmt.Errorf("%s: %d validation errors", path, len(errs))
			}

			// Building the registrations loads fixtures and compiles schemas.
			lcfg, err := cfg.LoaderConfig(nil)
			if err != nil {
				return err
			}
			ldr := loader.New(lcfg)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			handles, err := cfg.Apply(ctx, request.New(ldr.Load), ldr)
			if err != nil {
				fmt.Fprintf(out, "%s %s\n", output.ErrorIcon(noColor), err)
				return fmt.Errorf("%s: %w", path, err)
			}
			handles.Destroy()

			fmt.Fprintf(out, "%s %s is valid (%d routes, %d filters)\n",
				output.SuccessIcon(noColor), path, len(cfg.Routes), len(cfg.Filters))
			return nil
		},
	}
}
