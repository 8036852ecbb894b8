package udev

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestGlobToRegex(t *testing.T) {
	re := regexp.MustCompile(globToRegex("pci:v00008086d*sv*sd*bc*sc*i*"))
	cases := map[string]bool{
		"pci:v00008086d00001234sv0000ABCDsd00005678bc02sc00i00": true,
		"pci:v00001234d00001234sv0000ABCDsd00005678bc02sc00i00": false,
	}
	for in, want := range cases {
		if got := re.MatchString(in); got != want {
			t.Errorf("MatchString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoadAliasMatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modules.alias")
	content := "# comment\nalias pci:v00008086d* e1000e\nalias usb:v046Dp* logitech\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadAliasMatcher(path)
	if err != nil {
		t.Fatal(err)
	}

	matches := m.Match("pci:v00008086d00001234sv0000sd0000bc00sc00i00")
	if len(matches) != 1 || matches[0] != "e1000e" {
		t.Fatalf("unexpected matches: %v", matches)
	}

	none := m.Match("pci:v00001234d00001234sv0000sd0000bc00sc00i00")
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %v", none)
	}
}

func TestHandleEvent_NoModalias(t *testing.T) {
	m := &AliasMatcher{}
	if err := HandleEvent([]byte(`{"SUMMARY":"add@/devices/x"}`), m, t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
