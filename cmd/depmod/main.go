// Command depmod scans a kernel module tree and regenerates its
// modules.dep, modules.alias, modules.name, and modules.symbols indexes.
package main

import (
	"fmt"
	"os"

	"github.com/joeycumines/qsys/internal/kmod"
	"github.com/joeycumines/qsys/internal/logging"
	"github.com/spf13/cobra"
)

const defaultModulesRoot = "/lib/modules"

func main() {
	var modulesRoot string

	root := &cobra.Command{
		Use:           "depmod",
		Short:         "Regenerate a kernel module tree's dependency indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(modulesRoot)
		},
	}
	root.Flags().StringVar(&modulesRoot, "root", defaultModulesRoot, "root directory of the kernel module tree")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "depmod:", err)
		os.Exit(1)
	}
}

func run(modulesRoot string) error {
	log := logging.Default("depmod")

	if err := kmod.GenerateIndexes(modulesRoot); err != nil {
		return fmt.Errorf("depmod: generate indexes under %s: %w", modulesRoot, err)
	}

	log.Info().Str("root", modulesRoot).Msg("regenerated module indexes")
	return nil
}
