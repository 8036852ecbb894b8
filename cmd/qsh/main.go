// Command qsh is a minimal interactive shell: a line editor feeding a
// pipeline parser and executor, intended as the initramfs rescue shell.
package main

import (
	"fmt"
	"os"

	"github.com/joeycumines/qsys/internal/shell"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "qsh",
		Short:         "A minimal interactive shell",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "qsh:", err)
		os.Exit(1)
	}
}

func run() error {
	fd := int(os.Stdin.Fd())
	if restore, err := shell.RawMode(fd); err == nil {
		defer restore()
	}

	s := shell.New(os.Stdin, os.Stdout, os.Stderr)
	return s.Run()
}
