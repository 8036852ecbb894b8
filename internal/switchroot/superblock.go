// Package switchroot probes a block device's filesystem type and performs
// the mount-move-chroot sequence that hands control from an initramfs to the
// real root filesystem.
package switchroot

import (
	"encoding/binary"
	"fmt"
	"os"
)

// FilesystemType identifies a probed filesystem.
type FilesystemType string

const (
	Ext2  FilesystemType = "ext2"
	Ext3  FilesystemType = "ext3"
	Ext4  FilesystemType = "ext4"
	Btrfs FilesystemType = "btrfs"
)

// Probe is the result of successfully identifying a block device's
// filesystem.
type Probe struct {
	Path string
	Type FilesystemType
}

const (
	extMagicOffset = 0x400
	extSuperSize   = 0x400
	extMagic       = 0xEF53 // little-endian u16 at offset 0x38 within the superblock

	btrfsMagicOffset = 0x10000
	btrfsSuperSize   = 0x1000
)

var btrfsMagic = [8]byte{'_', 'B', 'H', 'R', 'f', 'S', '_', 'M'}

// ext2/3/4 feature-bitmask constants, read from the superblock's
// s_feature_ro_compat (offset 0x64), s_feature_incompat (0x60), and
// s_feature_compat (0x5C) fields (all little-endian u32, relative to the
// superblock's own base, i.e. +0x400 in the device).
const (
	compatDirIndex   = 0x0020
	compatHasJournal = 0x0004

	incompat64Bit   = 0x0080
	incompatExtents = 0x0040
	incompatFlexBG  = 0x0200
	incompatMetaBG  = 0x0010
	incompatMMP     = 0x0100

	roCompatBigalloc  = 0x0200
	roCompatDirNlink  = 0x0020
	roCompatExtraIsize = 0x0040
	roCompatHugeFile  = 0x0008
	roCompatGDTCsum   = 0x0010
)

// ProbeDevice reads the superblock of the block device or image file at
// path and identifies its filesystem type. It tries ext2/3/4 first, then
// btrfs; an unrecognized superblock is reported as an error.
func ProbeDevice(path string) (*Probe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if typ, ok, err := probeExt(f); err != nil {
		return nil, err
	} else if ok {
		return &Probe{Path: path, Type: typ}, nil
	}

	if ok, err := probeBtrfs(f); err != nil {
		return nil, err
	} else if ok {
		return &Probe{Path: path, Type: Btrfs}, nil
	}

	return nil, fmt.Errorf("switchroot: %s: unrecognized filesystem", path)
}

func probeExt(f *os.File) (FilesystemType, bool, error) {
	buf := make([]byte, extSuperSize)
	if _, err := f.ReadAt(buf, extMagicOffset); err != nil {
		return "", false, err
	}

	magic := binary.LittleEndian.Uint16(buf[0x38:0x3A])
	if magic != extMagic {
		return "", false, nil
	}

	compat := binary.LittleEndian.Uint32(buf[0x5C:0x60])
	incompat := binary.LittleEndian.Uint32(buf[0x60:0x64])
	roCompat := binary.LittleEndian.Uint32(buf[0x64:0x68])

	ext4Mask := roCompatBigalloc | roCompatDirNlink | roCompatExtraIsize | roCompatHugeFile | roCompatGDTCsum
	ext4Incompat := incompat64Bit | incompatExtents | incompatFlexBG | incompatMetaBG | incompatMMP
	if roCompat&uint32(ext4Mask) != 0 || incompat&uint32(ext4Incompat) != 0 {
		return Ext4, true, nil
	}

	ext3Mask := compatDirIndex | compatHasJournal
	if compat&uint32(ext3Mask) != 0 {
		return Ext3, true, nil
	}

	return Ext2, true, nil
}

func probeBtrfs(f *os.File) (bool, error) {
	buf := make([]byte, btrfsSuperSize)
	if _, err := f.ReadAt(buf, btrfsMagicOffset); err != nil {
		return false, err
	}
	// The btrfs magic lives at offset 0x40 within the superblock.
	var magic [8]byte
	copy(magic[:], buf[0x40:0x48])
	return magic == btrfsMagic, nil
}
