package kmod

import (
	"strings"
	"testing"
)

func TestParseDep(t *testing.T) {
	input := "kernel/fs/ext4/ext4.ko: kernel/fs/jbd2/jbd2.ko kernel/lib/crc16.ko\nkernel/fs/jbd2/jbd2.ko:\n"
	dg, err := ParseDep(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	deps := dg.Deps["kernel/fs/ext4/ext4.ko"]
	if len(deps) != 2 || deps[0] != "kernel/fs/jbd2/jbd2.ko" || deps[1] != "kernel/lib/crc16.ko" {
		t.Fatalf("unexpected deps: %v", deps)
	}
	if len(dg.Deps["kernel/fs/jbd2/jbd2.ko"]) != 0 {
		t.Fatalf("expected no deps for jbd2")
	}
}

func TestParseAlias(t *testing.T) {
	input := "# comment\nalias pci:v00008086* e1000e\nalias usb:v046Dp* logitech\n"
	rules, err := ParseAlias(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Pattern != "pci:v00008086*" || rules[0].Module != "e1000e" {
		t.Fatalf("unexpected rule: %+v", rules[0])
	}
}

func TestFindModulesToLoad_Order(t *testing.T) {
	// dg.Deps' values are bare module names, as they come straight off each
	// module's .modinfo "depends=" field; names resolves them to paths.
	dg := &DepGraph{Deps: map[string][]string{
		"ext4.ko": {"jbd2", "crc16"},
		"jbd2.ko": {"crc16"},
		"crc16.ko": nil,
	}}
	names := NameIndex{
		"ext4":  "ext4.ko",
		"jbd2":  "jbd2.ko",
		"crc16": "crc16.ko",
	}
	order, err := FindModulesToLoad(dg, names, "ext4.ko")
	if err != nil {
		t.Fatal(err)
	}
	pos := make(map[string]int, len(order))
	for i, m := range order {
		pos[m] = i
	}
	if pos["crc16.ko"] >= pos["jbd2.ko"] || pos["jbd2.ko"] >= pos["ext4.ko"] {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestFindModulesToLoad_Cycle(t *testing.T) {
	dg := &DepGraph{Deps: map[string][]string{
		"a.ko": {"b"},
		"b.ko": {"a"},
	}}
	names := NameIndex{"a": "a.ko", "b": "b.ko"}
	_, err := FindModulesToLoad(dg, names, "a.ko")
	if err == nil {
		t.Fatal("expected DependencyError")
	}
	depErr, ok := err.(*DependencyError)
	if !ok {
		t.Fatalf("expected *DependencyError, got %T", err)
	}
	if len(depErr.Remaining) == 0 {
		t.Fatal("expected remaining vertices to be reported")
	}
}

func TestFindModulesToLoad_UnresolvedDependencyName(t *testing.T) {
	// A dependency name with no modules.name entry must be reported, not
	// silently treated as "no further dependencies".
	dg := &DepGraph{Deps: map[string][]string{
		"ext4.ko": {"jbd2"},
	}}
	names := NameIndex{"ext4": "ext4.ko"}
	_, err := FindModulesToLoad(dg, names, "ext4.ko")
	if err == nil {
		t.Fatal("expected DependencyError for unresolvable dependency name")
	}
	depErr, ok := err.(*DependencyError)
	if !ok {
		t.Fatalf("expected *DependencyError, got %T", err)
	}
	if len(depErr.Remaining) != 1 || depErr.Remaining[0] != "jbd2" {
		t.Fatalf("expected remaining = [jbd2], got %v", depErr.Remaining)
	}
}

// TestFindModulesToLoad_RealDepmodOutput runs modules.dep/modules.name
// content in exactly the shape GenerateIndexes writes it (dependency lists
// are names off .modinfo "depends=", keyed by path) through ParseDep,
// ParseNames, and FindModulesToLoad together, the way LoadModule does. This
// guards against the name/path confusion a self-consistent hand-authored
// graph (as in TestFindModulesToLoad_Order) can't catch.
func TestFindModulesToLoad_RealDepmodOutput(t *testing.T) {
	depContent := "kernel/fs/ext4/ext4.ko: jbd2 crc16\n" +
		"kernel/fs/jbd2/jbd2.ko: crc16\n" +
		"kernel/lib/crc16.ko:\n"
	nameContent := "ext4:kernel/fs/ext4/ext4.ko\n" +
		"jbd2:kernel/fs/jbd2/jbd2.ko\n" +
		"crc16:kernel/lib/crc16.ko\n"

	dg, err := ParseDep(strings.NewReader(depContent))
	if err != nil {
		t.Fatal(err)
	}
	names, err := ParseNames(strings.NewReader(nameContent))
	if err != nil {
		t.Fatal(err)
	}

	path, ok := names["ext4"]
	if !ok {
		t.Fatal("expected ext4 in modules.name")
	}
	order, err := FindModulesToLoad(dg, names, path)
	if err != nil {
		t.Fatal(err)
	}

	pos := make(map[string]int, len(order))
	for i, m := range order {
		pos[m] = i
	}
	ext4Path := "kernel/fs/ext4/ext4.ko"
	jbd2Path := "kernel/fs/jbd2/jbd2.ko"
	crc16Path := "kernel/lib/crc16.ko"
	if pos[crc16Path] >= pos[jbd2Path] || pos[jbd2Path] >= pos[ext4Path] {
		t.Fatalf("unexpected order: %v", order)
	}
}
