package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Show the server's supported operations and versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := connect()
			if err != nil {
				return err
			}

			info, err := client.Describe()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(info.Versions))
			for name := range info.Versions {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", name, info.Versions[name])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ops: %s\n", strings.Join(info.Ops, " "))
			return nil
		},
	}
}
