package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/replink/discovery"
)

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Resolve the nREPL port, launching the server if configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := discovery.Discover(discoveryOptions())
			if err != nil {
				return err
			}
			if res.Port != 0 {
				fmt.Fprintln(cmd.OutOrStdout(), res.Port)
			}
			if res.Handle != nil {
				// The launched server stays up; that is the point of
				// running discover with a start command.
				fmt.Fprintf(cmd.ErrOrStderr(), "server running (pid %d)\n", res.Handle.Pid())
			}
			return nil
		},
	}
}
