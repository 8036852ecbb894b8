// Command loggerd runs the log-store daemon: a control socket that accepts
// write streams of tagged log lines and serves read streams (optionally
// following) of the entries they produced.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/qsys/internal/control"
	"github.com/joeycumines/qsys/internal/logging"
	"github.com/joeycumines/qsys/internal/logstore"
	"github.com/spf13/cobra"
)

const (
	defaultSocketPath = "/run/loggerd/control.sock"
	defaultDir        = "/var/log/qsys"
)

func main() {
	var socketPath, dir string

	root := &cobra.Command{
		Use:           "loggerd",
		Short:         "A structured log-store daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), socketPath, dir)
		},
	}
	root.Flags().StringVar(&socketPath, "socket", defaultSocketPath, "path to the control socket")
	root.Flags().StringVar(&dir, "dir", defaultDir, "directory holding log segment files")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "loggerd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, socketPath, dir string) error {
	log := logging.Default("loggerd")

	store, err := logstore.Open(dir, log)
	if err != nil {
		return fmt.Errorf("loggerd: open store at %s: %w", dir, err)
	}
	defer store.Close()

	sock, err := control.Listen(socketPath, logstore.NewActionFactory(store, dir), log)
	if err != nil {
		return fmt.Errorf("loggerd: listen on %s: %w", socketPath, err)
	}
	defer sock.Close()

	log.Info().Str("socket", socketPath).Str("dir", dir).Msg("loggerd listening")
	return sock.Serve(ctx)
}
