package switchroot

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func makeExtImage(t *testing.T, incompat, roCompat, compat uint32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.img")
	buf := make([]byte, extMagicOffset+extSuperSize)
	binary.LittleEndian.PutUint16(buf[extMagicOffset+0x38:extMagicOffset+0x3A], extMagic)
	binary.LittleEndian.PutUint32(buf[extMagicOffset+0x5C:extMagicOffset+0x60], compat)
	binary.LittleEndian.PutUint32(buf[extMagicOffset+0x60:extMagicOffset+0x64], incompat)
	binary.LittleEndian.PutUint32(buf[extMagicOffset+0x64:extMagicOffset+0x68], roCompat)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProbeDevice_Ext4(t *testing.T) {
	path := makeExtImage(t, incompatExtents, 0, 0)
	p, err := ProbeDevice(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != Ext4 {
		t.Fatalf("Type = %v, want ext4", p.Type)
	}
}

func TestProbeDevice_Ext3(t *testing.T) {
	path := makeExtImage(t, 0, 0, compatHasJournal)
	p, err := ProbeDevice(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != Ext3 {
		t.Fatalf("Type = %v, want ext3", p.Type)
	}
}

func TestProbeDevice_Ext2(t *testing.T) {
	path := makeExtImage(t, 0, 0, 0)
	p, err := ProbeDevice(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != Ext2 {
		t.Fatalf("Type = %v, want ext2", p.Type)
	}
}

func TestProbeDevice_Btrfs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.img")
	buf := make([]byte, btrfsMagicOffset+btrfsSuperSize)
	copy(buf[btrfsMagicOffset+0x40:btrfsMagicOffset+0x48], btrfsMagic[:])
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := ProbeDevice(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != Btrfs {
		t.Fatalf("Type = %v, want btrfs", p.Type)
	}
}

func TestProbeDevice_Unrecognized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.img")
	buf := make([]byte, btrfsMagicOffset+btrfsSuperSize)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ProbeDevice(path); err == nil {
		t.Fatal("expected error probing a buffer with no recognizable magic")
	}
}
