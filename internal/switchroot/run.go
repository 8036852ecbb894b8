package switchroot

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

const stagingPath = "/.root"

// DefaultNewRoot reads /proc/cmdline for a "root=" token, the way an
// initramfs discovers which device to switch onto when the caller doesn't
// specify one explicitly.
func DefaultNewRoot() (string, error) {
	f, err := os.Open("/proc/cmdline")
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 64*1024)
	if !sc.Scan() {
		return "", fmt.Errorf("switchroot: empty /proc/cmdline")
	}
	for _, field := range strings.Fields(sc.Text()) {
		if value, ok := strings.CutPrefix(field, "root="); ok {
			return value, nil
		}
	}
	return "", fmt.Errorf("switchroot: no root= on kernel command line")
}

// Run mounts newRoot at stagingPath (probing its filesystem type first),
// moves /dev, /proc, /sys, and /run into the new root, then chroots into it
// and execs /sbin/qinit as pid 1's replacement.
func Run(newRoot string) error {
	probe, err := ProbeDevice(newRoot)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(stagingPath, 0o755); err != nil {
		return fmt.Errorf("switchroot: mkdir %s: %w", stagingPath, err)
	}

	if err := unix.Mount(newRoot, stagingPath, string(probe.Type), 0, ""); err != nil {
		return fmt.Errorf("switchroot: mount %s (%s) at %s: %w", newRoot, probe.Type, stagingPath, err)
	}

	if err := moveMounts(stagingPath, "/dev", "/proc", "/sys", "/run"); err != nil {
		return err
	}

	if err := unix.Chdir(stagingPath); err != nil {
		return fmt.Errorf("switchroot: chdir %s: %w", stagingPath, err)
	}
	if err := unix.Chroot(stagingPath); err != nil {
		return fmt.Errorf("switchroot: chroot %s: %w", stagingPath, err)
	}
	if err := unix.Chdir("/"); err != nil {
		return fmt.Errorf("switchroot: chdir /: %w", err)
	}

	if err := unix.Exec("/sbin/qinit", []string{"/sbin/qinit"}, os.Environ()); err != nil {
		return fmt.Errorf("switchroot: exec /sbin/qinit: %w", err)
	}
	return nil // unreachable: Exec only returns on error
}

// moveMounts MS_MOVEs each of the given absolute paths from the current root
// into newRoot+path, creating the target directory first if necessary.
func moveMounts(newRoot string, paths ...string) error {
	for _, path := range paths {
		target := newRoot + path
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("switchroot: mkdir %s: %w", target, err)
		}
		if err := unix.Mount(path, target, "", unix.MS_MOVE, ""); err != nil {
			return fmt.Errorf("switchroot: move %s to %s: %w", path, target, err)
		}
	}
	return nil
}
