// Command busd runs the message bus daemon: a control socket that lets
// producers publish frames to a named topic and subscribers receive them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/qsys/internal/bus"
	"github.com/joeycumines/qsys/internal/control"
	"github.com/joeycumines/qsys/internal/logging"
	"github.com/spf13/cobra"
)

const defaultSocketPath = "/run/busd/control.sock"

func main() {
	var socketPath string

	root := &cobra.Command{
		Use:           "busd",
		Short:         "A message bus daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), socketPath)
		},
	}
	root.Flags().StringVar(&socketPath, "socket", defaultSocketPath, "path to the control socket")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "busd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, socketPath string) error {
	log := logging.Default("busd")

	b := bus.New(log)
	sock, err := control.Listen(socketPath, bus.NewActionFactory(b), log)
	if err != nil {
		return fmt.Errorf("busd: listen on %s: %w", socketPath, err)
	}
	defer sock.Close()

	log.Info().Str("socket", socketPath).Msg("busd listening")
	return sock.Serve(ctx)
}
