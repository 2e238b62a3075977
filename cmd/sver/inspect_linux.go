//go:build linux

package main

import (
	"fmt"
	"os/exec"

	"github.com/odvcencio/sver/pkg/inspect"
	"github.com/odvcencio/sver/pkg/repo"
	"github.com/spf13/cobra"
)

func addPlatformCommands(root *cobra.Command, c *cli) {
	root.AddCommand(newInspectCmd(c))
}

func newInspectCmd(c *cli) *cobra.Command {
	var stdout string
	cmd := &cobra.Command{
		Use:   "inspect [--output stdout|devnull] command [args...]",
		Short: "(experimental) List tracked files a command reads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".", repo.WithLogger(c.logger))
			if err != nil {
				return err
			}
			defer r.Close()
			entries, err := r.Entries()
			if err != nil {
				return err
			}

			child := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
			child.Stdin = cmd.InOrStdin()
			child.Stderr = cmd.ErrOrStderr()
			switch stdout {
			case "stdout":
				child.Stdout = cmd.OutOrStdout()
			case "devnull":
				// A nil Stdout is connected to the null device.
			default:
				return fmt.Errorf("unknown stdout target %q (want stdout or devnull)", stdout)
			}

			accessed, err := inspect.Run(cmd.Context(), r.RootDir, inspect.Directories(entries), child, c.logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range accessed {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&stdout, "output", "o", "stdout", "where the command's stdout goes: stdout or devnull")
	cmd.Flags().SetInterspersed(false)
	return cmd
}
