package cli

import (
	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get URL",
		Short: "Make a GET request to the specified URL",
		Example: `  courier get https://api.example.com/users
  courier get https://api.example.com/users -r json --extract '$.users[0].name'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, "GET", args[0])
		},
	}
}
