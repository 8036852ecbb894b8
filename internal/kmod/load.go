package kmod

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"golang.org/x/sys/unix"
)

// LoadFile reads a module's image from disk, transparently decompressing it
// if its extension indicates xz compression (".ko.xz"/".o.xz"); plain ".ko"
// and ".o" files are read as-is.
func LoadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".xz") {
		zr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("kmod: xz: %w", err)
		}
		return io.ReadAll(zr)
	}
	return io.ReadAll(f)
}

// InsertModule loads a single module image into the running kernel via
// init_module(2). A module already loaded (EEXIST) is treated as success.
func InsertModule(image []byte, params string) error {
	err := unix.InitModule(image, params)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("kmod: init_module: %w", err)
	}
	return nil
}

// LoadModule loads module (and every dependency modules.dep names for it,
// dependencies first) from modulesRoot, the directory holding modules.dep,
// modules.name, and the module images themselves.
func LoadModule(modulesRoot, name, params string) error {
	depPath := filepath.Join(modulesRoot, "modules.dep")
	namePath := filepath.Join(modulesRoot, "modules.name")

	depFile, err := os.Open(depPath)
	if err != nil {
		return fmt.Errorf("kmod: %w", err)
	}
	defer depFile.Close()
	dg, err := ParseDep(depFile)
	if err != nil {
		return err
	}

	nameFile, err := os.Open(namePath)
	if err != nil {
		return fmt.Errorf("kmod: %w", err)
	}
	defer nameFile.Close()
	names, err := ParseNames(nameFile)
	if err != nil {
		return err
	}

	path, ok := names[name]
	if !ok {
		return &UnknownModuleError{Name: name}
	}

	order, err := FindModulesToLoad(dg, names, path)
	if err != nil {
		return err
	}

	for _, modPath := range order {
		full := modPath
		if !filepath.IsAbs(full) {
			full = filepath.Join(modulesRoot, modPath)
		}
		image, err := LoadFile(full)
		if err != nil {
			return fmt.Errorf("kmod: loading %s: %w", full, err)
		}
		p := ""
		if modPath == path {
			p = params
		}
		if err := InsertModule(image, p); err != nil {
			return fmt.Errorf("kmod: loading %s: %w", full, err)
		}
	}
	return nil
}

// UnknownModuleError reports a module name with no entry in modules.name.
type UnknownModuleError struct {
	Name string
}

func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("kmod: unknown module %q", e.Name)
}
