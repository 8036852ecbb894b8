// Command switchroot mounts a new root filesystem, migrates the essential
// kernel mounts onto it, chroots, and execs /sbin/qinit in place of itself.
package main

import (
	"fmt"
	"os"

	"github.com/joeycumines/qsys/internal/switchroot"
	"github.com/spf13/cobra"
)

func main() {
	var newRoot string

	root := &cobra.Command{
		Use:           "switchroot [device]",
		Short:         "Switch the root filesystem and exec qinit",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				newRoot = args[0]
			}
			return run(newRoot)
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "switchroot:", err)
		os.Exit(1)
	}
}

func run(newRoot string) error {
	if newRoot == "" {
		var err error
		newRoot, err = switchroot.DefaultNewRoot()
		if err != nil {
			return fmt.Errorf("switchroot: resolve new root: %w", err)
		}
	}
	return switchroot.Run(newRoot)
}
