package supervisor

import (
	"fmt"
	"sort"
	"strings"
)

// Validate cross-checks every loaded service and sphere: that every
// "wants"/"needs" dependency names a known service and that the arguments
// passed to it are ones that service declares, and that the sphere graph
// (spheres depending on spheres) is acyclic.
func (c *Config) Validate() ValidationResult {
	var result ValidationResult

	for _, name := range sortedKeys(c.Services) {
		sc := c.Services[name]
		result.Errors = append(result.Errors, sc.errors...)
		for _, a := range sc.Service.Arguments {
			if a.Name == "" {
				result.Errors = append(result.Errors, ValidationError{
					Unit: name, Fatal: true, Message: "argument declared with empty name",
				})
			}
			if a.Required && a.Default != "" {
				result.Errors = append(result.Errors, ValidationError{
					Unit: name, Fatal: false,
					Message: fmt.Sprintf("argument %q is required but also declares a default", a.Name),
				})
			}
		}
		result.Errors = append(result.Errors, c.validateDeps(name, sc.Wants, "wants")...)
		result.Errors = append(result.Errors, c.validateDeps(name, sc.Needs, "needs")...)
	}

	for _, name := range sortedKeys(c.Spheres) {
		sp := c.Spheres[name]
		result.Errors = append(result.Errors, c.validateDeps(name, sp.Wants, "wants")...)
		for _, child := range sp.Spheres {
			if _, ok := c.Spheres[child]; !ok {
				result.Errors = append(result.Errors, ValidationError{
					Unit: name, Fatal: true,
					Message: fmt.Sprintf("sphere references unknown sphere %q", child),
				})
			}
		}
	}

	result.Errors = append(result.Errors, c.detectSphereCycles()...)

	return result
}

func (c *Config) validateDeps(unit string, deps []Dependency, kind string) []ValidationError {
	var errs []ValidationError
	for _, dep := range deps {
		target, ok := c.Services[dep.Name]
		if !ok {
			errs = append(errs, ValidationError{
				Unit: unit, Fatal: true,
				Message: fmt.Sprintf("%s references unknown service %q", kind, dep.Name),
			})
			continue
		}
		for argName := range dep.Args {
			if !target.Service.HasArgument(argName) {
				errs = append(errs, ValidationError{
					Unit: unit, Fatal: true,
					Message: fmt.Sprintf("%s dependency %q passes undeclared argument %q", kind, dep.Name, argName),
				})
			}
		}
		// needs, unlike wants, must fully cover the target's required
		// arguments: a service depended on via needs is expected to be
		// usable standalone from the values the dependent supplies.
		if kind == "needs" {
			if missing := target.Service.MissingArguments(dep.Args); len(missing) > 0 {
				errs = append(errs, ValidationError{
					Unit: unit, Fatal: true,
					Message: fmt.Sprintf("needs service %q with missing arguments: %s", dep.Name, strings.Join(missing, ", ")),
				})
			}
		}
	}
	return errs
}

// detectSphereCycles walks the sphere-to-sphere graph via DFS, reporting any
// cycle as "sphere depended on through flow: [a, b, c]", per §9's resolution
// of the sphere-cycle reporting open question.
func (c *Config) detectSphereCycles() []ValidationError {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(c.Spheres))
	var errs []ValidationError

	var path []string
	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		path = append(path, name)

		sp, ok := c.Spheres[name]
		if ok {
			for _, child := range sp.Spheres {
				switch color[child] {
				case white:
					if visit(child) {
						return true
					}
				case gray:
					cyclePath := append(append([]string(nil), path...), child)
					errs = append(errs, ValidationError{
						Unit: name, Fatal: true,
						Message: fmt.Sprintf("sphere depended on through flow: [%s]", strings.Join(cyclePath, ", ")),
					})
					return true
				}
			}
		}

		path = path[:len(path)-1]
		color[name] = black
		return false
	}

	for _, name := range sortedKeys(c.Spheres) {
		if color[name] == white {
			visit(name)
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
