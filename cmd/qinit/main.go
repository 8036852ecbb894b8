// Command qinit is pid 1's service supervisor: it loads a directory of
// declarative .service/.sphere unit files, validates their cross-references,
// and activates a named sphere in dependency order. A "switchroot"
// subcommand wraps the standalone switchroot binary for use directly from
// an initramfs shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/qsys/internal/logging"
	"github.com/joeycumines/qsys/internal/supervisor"
	"github.com/joeycumines/qsys/internal/switchroot"
	"github.com/spf13/cobra"
)

const (
	defaultUnitDir      = "/etc/qinit"
	defaultTargetSphere = "default"
)

func main() {
	var unitDir, sphere string

	root := &cobra.Command{
		Use:           "qinit",
		Short:         "Activate and supervise a sphere of services",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), unitDir, sphere)
		},
	}
	root.Flags().StringVar(&unitDir, "unit-dir", defaultUnitDir, "directory of .service/.sphere unit files")
	root.Flags().StringVar(&sphere, "sphere", defaultTargetSphere, "name of the sphere to activate")

	var newRoot string
	switchRootCmd := &cobra.Command{
		Use:           "switchroot [device]",
		Short:         "Switch the root filesystem and exec qinit",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				newRoot = args[0]
			}
			return runSwitchRoot(newRoot)
		},
	}
	root.AddCommand(switchRootCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "qinit:", err)
		os.Exit(1)
	}
}

func runSwitchRoot(newRoot string) error {
	if newRoot == "" {
		var err error
		newRoot, err = switchroot.DefaultNewRoot()
		if err != nil {
			return fmt.Errorf("qinit: resolve new root: %w", err)
		}
	}
	return switchroot.Run(newRoot)
}

func run(ctx context.Context, unitDir, sphere string) error {
	log := logging.Default("qinit")

	cfg, err := supervisor.LoadDirectory(unitDir)
	if err != nil {
		return fmt.Errorf("qinit: load units from %s: %w", unitDir, err)
	}

	result := cfg.Validate()
	for _, verr := range result.Errors {
		ev := log.Warn()
		if verr.Fatal {
			ev = log.Error()
		}
		ev.Str("unit", verr.Unit).Msg(verr.Message)
	}
	if result.Fatal() {
		return fmt.Errorf("qinit: unit validation failed")
	}

	sv := supervisor.New(cfg)
	log.Info().Str("sphere", sphere).Msg("activating sphere")
	if err := sv.ActivateSphere(sphere); err != nil {
		return fmt.Errorf("qinit: activate sphere %q: %w", sphere, err)
	}

	for _, inst := range sv.Instances() {
		log.Info().Str("service", inst.Name).Int("pid", inst.Pid()).Msg("service started")
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	return nil
}
