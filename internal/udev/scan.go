// Package udev implements the device-event pipeline: udevd's initial /sys
// walk and kernel-uevent-to-bus forwarding, and udev's bus-driven module
// autoloading via MODALIAS matching.
package udev

import (
	"os"
	"path/filepath"
)

// ScanDevices walks sysfsRoot (typically "/sys") breadth-first, writing
// "add\n" to every "uevent" file it finds. The kernel responds to each write
// by re-emitting that device's full uevent, which seeds udevd's downstream
// consumers with the state of every device that existed before udevd started
// listening. Symlinks are not followed, matching the real /sys tree's use of
// symlinks for device-class aliasing (following them would revisit the same
// device repeatedly).
func ScanDevices(sysfsRoot string) error {
	var queue []string
	queue = append(queue, sysfsRoot)

	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			// A removed or inaccessible directory mid-walk isn't fatal to the
			// overall scan; skip it and keep going.
			continue
		}

		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			if entry.Type()&os.ModeSymlink != 0 {
				continue
			}
			if entry.IsDir() {
				queue = append(queue, full)
				continue
			}
			if entry.Name() == "uevent" {
				addDevice(full)
			}
		}
	}
	return nil
}

// addDevice writes "add\n" to a device's uevent file, triggering the kernel
// to replay that device's uevent. Errors are swallowed: a device's uevent
// file may legitimately reject writes (permissions, device removed between
// ReadDir and Write), and one bad device must never abort the scan.
func addDevice(ueventPath string) {
	_ = os.WriteFile(ueventPath, []byte("add\n"), 0)
}
