package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Generate an empty sver.toml",
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

			outcome, err := sr.InitConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome.Message(sr.Target().Path))
			return nil
		},
	}
}
