package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval [code]",
		Short: "Evaluate code on the server and print the result",
		Long: "Evaluate code on the server and print the result.\n\n" +
			"With no argument the code is read from stdin.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) == 1 {
				code = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				code = string(data)
			}
			if strings.TrimSpace(code) == "" {
				return fmt.Errorf("no code to evaluate")
			}

			client, _, err := connect()
			if err != nil {
				return err
			}

			res, err := client.Eval(code)
			if err != nil {
				return err
			}

			if res.Out != "" {
				fmt.Fprint(cmd.OutOrStdout(), res.Out)
			}
			if res.Err != "" {
				fmt.Fprint(cmd.ErrOrStderr(), res.Err)
			}
			for _, v := range res.Values {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			if res.Interrupted {
				fmt.Fprintln(cmd.ErrOrStderr(), ";; evaluation interrupted")
			}
			if res.Ex != "" {
				return fmt.Errorf("evaluation raised %s", res.Ex)
			}
			return nil
		},
	}
}
