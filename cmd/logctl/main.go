// Command logctl manually drives loggerd's control socket: "write" feeds
// stdin lines into a write stream tagged with the given key=value pairs,
// "read" prints matching entries as JSON, one per line.
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joeycumines/qsys/internal/control"
	"github.com/joeycumines/qsys/internal/logstore"
	"github.com/spf13/cobra"
)

const defaultSocketPath = "/run/loggerd/control.sock"

func main() {
	var socketPath string

	root := &cobra.Command{
		Use:           "logctl",
		Short:         "Manually drive loggerd read/write streams",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&socketPath, "control-socket", defaultSocketPath, "path to loggerd's control socket")

	writeCmd := &cobra.Command{
		Use:   "write [key=value ...]",
		Short: "Stream stdin lines into loggerd, tagged with the given fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseKVs(args)
			if err != nil {
				return err
			}
			return runWrite(cmd.Context(), socketPath, fields)
		},
	}

	var since, until string
	var follow bool
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Print entries matching the given time range",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd.Context(), socketPath, since, until, follow)
		},
	}
	readCmd.Flags().StringVar(&since, "since", "", "RFC3339 timestamp: only entries at or after this time")
	readCmd.Flags().StringVar(&until, "until", "", "RFC3339 timestamp: only entries at or before this time")
	readCmd.Flags().BoolVar(&follow, "follow", false, "keep streaming newly appended entries")

	root.AddCommand(writeCmd, readCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "logctl:", err)
		os.Exit(1)
	}
}

// parseKVs turns a list of "key=value" arguments into control header tokens,
// matching the original CLI's validate_kvs.
func parseKVs(args []string) ([]control.KV, error) {
	kvs := make([]control.KV, 0, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid kv: %s", arg)
		}
		kvs = append(kvs, control.KV{Key: k, Value: v})
	}
	return kvs, nil
}

func runWrite(ctx context.Context, socketPath string, fields []control.KV) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("logctl: dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	header := strings.Builder{}
	header.WriteString(control.ActionKey + "=" + logstore.StartWriteStreamAction)
	for _, kv := range fields {
		header.WriteByte(' ')
		header.WriteString(kv.Key + "=" + kv.Value)
	}
	header.WriteByte('\n')
	if _, err := conn.Write([]byte(header.String())); err != nil {
		return fmt.Errorf("logctl: write header: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	stdin := bufio.NewScanner(os.Stdin)
	for stdin.Scan() {
		if _, err := conn.Write(append(stdin.Bytes(), '\n')); err != nil {
			return fmt.Errorf("logctl: write to socket: %w", err)
		}
	}
	return nil
}

func runRead(ctx context.Context, socketPath, since, until string, follow bool) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("logctl: dial %s: %w", socketPath, err)
	}
	defer conn.Close()

	header := strings.Builder{}
	header.WriteString(control.ActionKey + "=" + logstore.StartReadStreamAction)
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return fmt.Errorf("logctl: parse --since: %w", err)
		}
		header.WriteString(" _MIN_TIME=" + t.UTC().Format(time.RFC3339))
	}
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return fmt.Errorf("logctl: parse --until: %w", err)
		}
		header.WriteString(" _MAX_TIME=" + t.UTC().Format(time.RFC3339))
	}
	if follow {
		header.WriteString(" _FOLLOW=true")
	}
	header.WriteByte('\n')
	if _, err := conn.Write([]byte(header.String())); err != nil {
		return fmt.Errorf("logctl: write header: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	r := bufio.NewReader(conn)
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("logctl: read frame length: %w", err)
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return fmt.Errorf("logctl: read frame payload: %w", err)
		}
		fmt.Println(string(payload))
	}
}
