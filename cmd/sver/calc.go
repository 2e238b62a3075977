package main

import (
	"fmt"
	"runtime"

	"github.com/odvcencio/sver/pkg/output"
	"github.com/odvcencio/sver/pkg/sver"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newCalcCmd(c *cli) *cobra.Command {
	var format, length string
	cmd := &cobra.Command{
		Use:   "calc [path[:profile]...]",
		Short: "Calculate the version of each target",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			l, err := output.ParseLength(length)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"."}
			}

			versions := make([]sver.Version, len(args))
			var g errgroup.Group
			g.SetLimit(runtime.GOMAXPROCS(0))
			for i, spec := range args {
				i, spec := i, spec
				g.Go(func() error {
					v, err := c.calc(spec)
					if err != nil {
						return fmt.Errorf("%s: %w", spec, err)
					}
					versions[i] = v
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			return output.Write(cmd.OutOrStdout(), versions, f, l)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", string(output.VersionOnly), "output format: version-only, toml, json or yaml")
	cmd.Flags().StringVarP(&length, "length", "l", string(output.Short), "version length: short or long")
	return cmd
}

func (c *cli) calc(spec string) (sver.Version, error) {
	r, sr, err := c.open(spec)
	if err != nil {
		return sver.Version{}, err
	}
	defer r.Close()
	return sr.CalcVersion()
}
