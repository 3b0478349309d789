package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newHelpersCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "helpers",
		Short: "List the registered helpers and filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, cleanup, err := g.engine(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			for _, name := range e.Registry().Names() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
