package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/odvcencio/sver/pkg/repo"
	"github.com/odvcencio/sver/pkg/sver"
	"github.com/spf13/cobra"
)

// logEnv names the variable consulted when --log-level is not given.
const logEnv = "SVER_LOG"

// cli carries state shared by every subcommand.
type cli struct {
	logLevel string
	logger   *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	root := &cobra.Command{
		Use:           "sver",
		Short:         "Version calculator based on source code",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setupLogging(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error (default $"+logEnv+" or warn)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newCalcCmd(c))
	root.AddCommand(newListCmd(c))
	root.AddCommand(newInitCmd(c))
	root.AddCommand(newValidateCmd(c))
	addPlatformCommands(root, c)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sver 0.1.0-dev")
		},
	}
}

func (c *cli) setupLogging(w io.Writer) error {
	level, err := parseLevel(c.logLevel, os.Getenv(logEnv))
	if err != nil {
		return err
	}
	c.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return nil
}

// parseLevel prefers the flag value, then the environment, then warn.
func parseLevel(flag, env string) (slog.Level, error) {
	s := strings.TrimSpace(flag)
	if s == "" {
		s = strings.TrimSpace(env)
	}
	if s == "" {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// open resolves a "<path>[:<profile>]" argument to a repository handle.
func (c *cli) open(spec string) (*repo.Repo, *sver.Repository, error) {
	r, target, err := repo.OpenTarget(spec, repo.WithLogger(c.logger))
	if err != nil {
		return nil, nil, err
	}
	return r, sver.New(r, target, sver.WithLogger(c.logger)), nil
}
