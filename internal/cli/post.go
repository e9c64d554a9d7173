package cli

import (
	"github.com/spf13/cobra"
)

func newPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post URL",
		Short: "Make a POST request to the specified URL",
		Example: `  courier post https://api.example.com/users --json '{"name":"ada"}'
  courier post https://api.example.com/login -d 'user=ada'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, "POST", args[0])
		},
	}
	addBodyFlags(cmd)
	return cmd
}

// addBodyFlags adds the request body flags to commands that send one.
func addBodyFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("data", "d", "", "Data to send in the request body")
	cmd.Flags().StringP("json", "j", "", "JSON data to send in the request body")
}
