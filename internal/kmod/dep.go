// Package kmod resolves kernel module dependency order and loads modules
// into the running kernel, the way modprobe and udev's alias-driven
// autoloading both need to.
package kmod

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/joeycumines/qsys/internal/graph"
)

// DependencyError reports that a requested module's dependency chain could
// not be fully resolved: a cycle, or a dependency name with no corresponding
// modules.name entry.
type DependencyError struct {
	Module    string
	Remaining []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("kmod: could not resolve dependencies for %q, stuck on: %v", e.Module, e.Remaining)
}

// DepGraph is the parsed contents of modules.dep: for every known module
// path, the paths of the modules it depends on.
type DepGraph struct {
	// Deps maps a module's file path to the paths of modules it requires
	// loaded first.
	Deps map[string][]string
}

// ParseDep parses a modules.dep file: lines of the form
// "<path>: <dep1> <dep2> ...", dependencies whitespace separated.
func ParseDep(r io.Reader) (*DepGraph, error) {
	dg := &DepGraph{Deps: make(map[string][]string)}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		path, rest, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("kmod: malformed modules.dep line %q", line)
		}
		path = strings.TrimSpace(path)
		var deps []string
		for _, f := range strings.Fields(rest) {
			deps = append(deps, f)
		}
		dg.Deps[path] = deps
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return dg, nil
}

// NameIndex maps a bare module name (e.g. "ext4") to its path in
// modules.dep, as recorded by modules.name.
type NameIndex map[string]string

// ParseNames parses a modules.name file: lines of the form "<name>:<path>".
func ParseNames(r io.Reader) (NameIndex, error) {
	idx := make(NameIndex)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		name, path, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("kmod: malformed modules.name line %q", line)
		}
		idx[strings.TrimSpace(name)] = strings.TrimSpace(path)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}

// AliasRule is one entry of modules.alias: a glob pattern, kept as the raw
// glob text, that maps a device's MODALIAS string to a module name.
type AliasRule struct {
	Pattern string // original glob, kept for diagnostics
	Module  string
}

// ParseAlias parses a modules.alias file: lines of the form
// "alias <glob> <module>", blank lines and "#"-prefixed comments skipped.
func ParseAlias(r io.Reader) ([]AliasRule, error) {
	var rules []AliasRule
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 || fields[0] != "alias" {
			return nil, fmt.Errorf("kmod: malformed modules.alias line %q", line)
		}
		rules = append(rules, AliasRule{Pattern: fields[1], Module: fields[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// FindModulesToLoad returns the load order for module (and every module it
// transitively depends on), dependencies first. module must already be a key
// of dg.Deps (a path, per modules.dep's own keying). dg.Deps' values are bare
// module names (modules.dep's right-hand side comes straight from each
// module's .modinfo "depends=" field, same as the original depmod's
// ModInfo.dependencies), so every dependency is resolved through names (the
// modules.name index) to its path before it's added to the graph or
// recursed into; a dependency with no entry in names can never be loaded and
// is reported in the returned DependencyError rather than silently dropped.
func FindModulesToLoad(dg *DepGraph, names NameIndex, module string) ([]string, error) {
	g := graph.New[string, struct{}]()
	seen := make(map[string]bool)
	var unresolved []string

	var visit func(path string)
	visit = func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true
		g.AddVertex(path)
		for _, depName := range dg.Deps[path] {
			depPath, ok := names[depName]
			if !ok {
				unresolved = append(unresolved, depName)
				continue
			}
			g.AddEdge(depPath, struct{}{}, path)
			visit(depPath)
		}
	}
	visit(module)

	if len(unresolved) > 0 {
		return nil, &DependencyError{Module: module, Remaining: unresolved}
	}

	order, err := g.Flatten()
	if err != nil {
		var remaining []string
		if cycleErr, ok := err.(*graph.CycleError[string]); ok {
			remaining = cycleErr.Remaining
		}
		return nil, &DependencyError{Module: module, Remaining: remaining}
	}
	return order, nil
}
