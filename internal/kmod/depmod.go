package kmod

import (
	"bytes"
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ModInfo is a module's parsed .modinfo section: the metadata depmod needs
// to build modules.dep, modules.alias, and modules.symbols.
type ModInfo struct {
	Name    string
	Depends []string
	Aliases []string
}

// ReadModInfo decompresses (if necessary) and parses the .modinfo ELF
// section of the module image at path.
func ReadModInfo(path string) (*ModInfo, error) {
	image, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("kmod: elf: %w", err)
	}
	defer f.Close()

	sec := f.Section(".modinfo")
	if sec == nil {
		return nil, fmt.Errorf("kmod: %s: no .modinfo section", path)
	}
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("kmod: %s: reading .modinfo: %w", path, err)
	}

	info := &ModInfo{}
	for _, field := range bytes.Split(data, []byte{0}) {
		if len(field) == 0 {
			continue
		}
		key, value, ok := strings.Cut(string(field), "=")
		if !ok {
			continue
		}
		switch key {
		case "name":
			info.Name = value
		case "depends":
			for _, d := range strings.Split(value, ",") {
				d = strings.TrimSpace(d)
				if d != "" {
					info.Depends = append(info.Depends, d)
				}
			}
		case "alias":
			info.Aliases = append(info.Aliases, value)
		}
	}
	if info.Name == "" {
		base := strings.TrimSuffix(filepath.Base(path), ".xz")
		info.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return info, nil
}

// Symbols returns the global function symbol names of a module image, read
// from its ELF .symtab/.strtab sections, for modules.symbols generation
// (enabling "alias symbol:<name> <module>" resolution).
func Symbols(path string) ([]string, error) {
	image, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("kmod: elf: %w", err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		// No .symtab is common for stripped modules; not fatal to depmod.
		return nil, nil
	}

	var out []string
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		if elf.ST_BIND(s.Info) != elf.STB_GLOBAL {
			continue
		}
		out = append(out, s.Name)
	}
	return out, nil
}

// FindModules walks root recursively, collecting every regular file with a
// ".ko", ".ko.xz", ".o", or ".o.xz" extension. Symlinks are skipped, so a
// module tree with convenience symlinks back into itself cannot loop.
func FindModules(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&os.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if isModuleFile(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func isModuleFile(path string) bool {
	for _, ext := range []string{".ko", ".ko.xz", ".o", ".o.xz"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// GenerateIndexes walks root for module images and writes modules.dep,
// modules.alias, modules.name, and modules.symbols into it, the way depmod
// populates a kernel module tree after installation.
//
// Unlike the original depmod, dependency lists in modules.dep are written
// whitespace-separated (matching modprobe's reader and the documented wire
// format), not comma-separated.
func GenerateIndexes(root string) error {
	paths, err := FindModules(root)
	if err != nil {
		return err
	}

	var depBuf, aliasBuf, nameBuf, symBuf strings.Builder
	for _, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		info, err := ReadModInfo(path)
		if err != nil {
			return err
		}

		fmt.Fprintf(&depBuf, "%s:", rel)
		for _, d := range info.Depends {
			fmt.Fprintf(&depBuf, " %s", d)
		}
		depBuf.WriteByte('\n')

		for _, alias := range info.Aliases {
			fmt.Fprintf(&aliasBuf, "alias %s %s\n", alias, info.Name)
		}

		fmt.Fprintf(&nameBuf, "%s:%s\n", info.Name, rel)

		syms, err := Symbols(path)
		if err != nil {
			return err
		}
		for _, s := range syms {
			fmt.Fprintf(&symBuf, "alias symbol:%s %s\n", s, info.Name)
		}
	}

	for name, content := range map[string]string{
		"modules.dep":     depBuf.String(),
		"modules.alias":   aliasBuf.String(),
		"modules.name":    nameBuf.String(),
		"modules.symbols": symBuf.String(),
	} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
