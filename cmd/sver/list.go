package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list [path[:profile]]",
		Short: "List the files that feed a target's version",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := "."
			if len(args) > 0 {
				spec = args[0]
			}
			r, sr, err := c.open(spec)
			if err != nil {
				return err
			}
			defer r.Close()

			sources, err := sr.ListSources()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range sources {
				fmt.Fprintln(out, s)
			}
			return nil
		},
	}
}
