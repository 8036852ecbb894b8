// Command udevd walks /sys to replay every existing device's uevent, then
// forwards the kernel's live uevent stream onto busd's "udev_events" topic for
// udev and any other subscriber to consume.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/qsys/internal/logging"
	qnetlink "github.com/joeycumines/qsys/internal/netlink"
	"github.com/joeycumines/qsys/internal/udev"

	qbus "github.com/joeycumines/qsys/internal/bus"
	"github.com/spf13/cobra"
)

const (
	defaultBusSocketPath = "/run/busd/control.sock"
	defaultSysfsRoot     = "/sys"
	ueventTopic          = "udev_events"

	// ueventGroupKernel is the standard "kernel events" multicast group.
	ueventGroupKernel = 1
)

func main() {
	var busSocket, sysfsRoot, readyFile string

	root := &cobra.Command{
		Use:           "udevd",
		Short:         "Replay and forward kernel device events onto the message bus",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), busSocket, sysfsRoot, readyFile)
		},
	}
	root.Flags().StringVar(&busSocket, "bus-socket", defaultBusSocketPath, "path to busd's control socket")
	root.Flags().StringVar(&sysfsRoot, "sysfs", defaultSysfsRoot, "root of the sysfs tree to scan at startup")
	root.Flags().StringVar(&readyFile, "ready-file", "", "path to touch once startup scanning and bus dial succeed, signaling the supervisor")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "udevd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, busSocket, sysfsRoot, readyFile string) error {
	log := logging.Default("udevd")

	if links, err := qnetlink.EnumerateLinks(); err != nil {
		log.Warn().Err(err).Msg("failed to enumerate network links")
	} else {
		for _, l := range links {
			log.Debug().Str("link", l.Name).Str("state", l.OperState).Msg("discovered network link")
		}
	}

	conn, err := qnetlink.OpenUevent(ueventGroupKernel)
	if err != nil {
		return fmt.Errorf("udevd: open uevent socket: %w", err)
	}
	defer conn.Close()

	pub, err := qbus.DialPublish(busSocket, ueventTopic)
	if err != nil {
		return fmt.Errorf("udevd: dial bus at %s: %w", busSocket, err)
	}
	defer pub.Close()
	go qbus.RunContext(ctx, pub)

	log.Info().Str("sysfs", sysfsRoot).Msg("replaying existing device uevents")
	if err := udev.ScanDevices(sysfsRoot); err != nil {
		log.Warn().Err(err).Msg("sysfs scan failed")
	}

	if readyFile != "" {
		if err := os.WriteFile(readyFile, nil, 0o644); err != nil {
			log.Warn().Err(err).Str("file", readyFile).Msg("failed to write ready file")
		}
	}

	log.Info().Str("topic", ueventTopic).Msg("forwarding kernel uevents onto the bus")
	if err := udev.Forward(ctx, conn, pub); err != nil {
		return fmt.Errorf("udevd: forward uevents: %w", err)
	}
	return nil
}
