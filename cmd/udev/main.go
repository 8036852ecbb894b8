// Command udev subscribes to busd's "udev_events" topic and loads any kernel
// module whose alias matches an incoming device's MODALIAS field.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	qbus "github.com/joeycumines/qsys/internal/bus"
	"github.com/joeycumines/qsys/internal/logging"
	"github.com/joeycumines/qsys/internal/udev"
	"github.com/spf13/cobra"
)

const (
	defaultBusSocketPath = "/run/busd/control.sock"
	defaultModulesRoot   = "/lib/modules"
	defaultModulesAlias  = "/lib/modules/modules.alias"
	ueventTopic          = "udev_events"
)

func main() {
	var busSocket, modulesRoot, modulesAlias string

	root := &cobra.Command{
		Use:           "udev",
		Short:         "Autoload kernel modules in response to device events",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), busSocket, modulesRoot, modulesAlias)
		},
	}
	root.Flags().StringVar(&busSocket, "bus-socket", defaultBusSocketPath, "path to busd's control socket")
	root.Flags().StringVar(&modulesRoot, "modules-root", defaultModulesRoot, "root directory holding modules.dep and module files")
	root.Flags().StringVar(&modulesAlias, "modules-alias", defaultModulesAlias, "path to the modules.alias index")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "udev:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, busSocket, modulesRoot, modulesAlias string) error {
	log := logging.Default("udev")

	matcher, err := udev.LoadAliasMatcher(modulesAlias)
	if err != nil {
		return fmt.Errorf("udev: load alias index %s: %w", modulesAlias, err)
	}

	sub, err := qbus.DialSubscribe(busSocket, ueventTopic)
	if err != nil {
		return fmt.Errorf("udev: dial bus at %s: %w", busSocket, err)
	}
	defer sub.Close()
	go qbus.RunContext(ctx, sub)

	log.Info().Str("topic", ueventTopic).Msg("listening for device events")
	for {
		frame, err := sub.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("udev: read event frame: %w", err)
		}
		if err := udev.HandleEvent(frame, matcher, modulesRoot); err != nil {
			log.Warn().Err(err).Msg("failed to handle device event")
		}
	}
}
