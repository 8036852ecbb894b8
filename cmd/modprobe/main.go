// Command modprobe loads a single kernel module by name, and every
// dependency modules.dep names for it, dependencies first.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeycumines/qsys/internal/kmod"
	"github.com/joeycumines/qsys/internal/logging"
	"github.com/spf13/cobra"
)

const defaultModulesRoot = "/lib/modules"

func main() {
	var modulesRoot string
	var params []string

	root := &cobra.Command{
		Use:           "modprobe <module>",
		Short:         "Load a kernel module and its dependencies",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(modulesRoot, args[0], strings.Join(params, " "))
		},
	}
	root.Flags().StringVar(&modulesRoot, "root", defaultModulesRoot, "root directory of the kernel module tree")
	root.Flags().StringArrayVar(&params, "param", nil, "a module parameter, key=value (repeatable)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "modprobe:", err)
		os.Exit(1)
	}
}

func run(modulesRoot, name, params string) error {
	log := logging.Default("modprobe")

	if err := kmod.LoadModule(modulesRoot, name, params); err != nil {
		return fmt.Errorf("modprobe: load %s: %w", name, err)
	}

	log.Info().Str("module", name).Msg("module loaded")
	return nil
}
