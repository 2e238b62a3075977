package main

import (
	"errors"
	"fmt"

	"github.com/odvcencio/sver/pkg/sver"
	"github.com/spf13/cobra"
)

var errInvalidConfig = errors.New("invalid sver.toml found")

func newValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate every sver.toml in the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, sr, err := c.open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			results, err := sr.Validate()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, res := range results {
				fmt.Fprint(out, res.String())
			}
			if sver.HasInvalid(results) {
				return errInvalidConfig
			}
			return nil
		},
	}
}
