//go:build !linux

package main

import "github.com/spf13/cobra"

// inspect relies on inotify and is only built on Linux.
func addPlatformCommands(root *cobra.Command, c *cli) {}
