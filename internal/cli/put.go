package cli

import (
	"github.com/spf13/cobra"
)

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put URL",
		Short: "Make a PUT request to the specified URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, "PUT", args[0])
		},
	}
	addBodyFlags(cmd)
	return cmd
}
