package supervisor

import (
	"fmt"

	"github.com/joeycumines/qsys/internal/graph"
)

// Supervisor owns the running instances for a loaded Config and drives
// sphere activation.
type Supervisor struct {
	cfg       *Config
	instances map[string]*Instance
}

// New returns a Supervisor over cfg. Callers should run cfg.Validate first
// and refuse to proceed on a fatal result.
func New(cfg *Config) *Supervisor {
	return &Supervisor{cfg: cfg, instances: make(map[string]*Instance)}
}

// Instances returns every instance started so far, in no particular order.
func (s *Supervisor) Instances() []*Instance {
	out := make([]*Instance, 0, len(s.instances))
	for _, i := range s.instances {
		out = append(out, i)
	}
	return out
}

// ActivateSphere starts every service (transitively) wanted by the named
// sphere, in dependency order: a service's "wants" and "needs" targets start
// before it does. A nested sphere's services and the sphere's own direct
// wants are ordered against each other only through such service
// dependencies.
func (s *Supervisor) ActivateSphere(name string) error {
	sp, ok := s.cfg.Spheres[name]
	if !ok {
		return fmt.Errorf("supervisor: unknown sphere %q", name)
	}

	order, err := s.flattenSphere(sp)
	if err != nil {
		return err
	}

	for _, dep := range order {
		if err := s.startDependency(dep); err != nil {
			return err
		}
	}
	return nil
}

// flattenSphere builds the full transitive dependency graph reachable from
// sp (nested spheres and service wants) and returns it in activation order.
func (s *Supervisor) flattenSphere(sp *SphereConfig) ([]Dependency, error) {
	g := graph.New[string, struct{}]()
	byKey := make(map[string]Dependency)

	var visitSphere func(sp *SphereConfig) string
	var visitService func(dep Dependency) string

	visitSphere = func(sp *SphereConfig) string {
		root := "sphere:" + sp.Name
		g.AddVertex(root)
		for _, childName := range sp.Spheres {
			if child, ok := s.cfg.Spheres[childName]; ok {
				childRoot := visitSphere(child)
				g.AddEdge(childRoot, struct{}{}, root)
			}
		}
		for _, dep := range sp.Wants {
			depKey := visitService(dep)
			g.AddEdge(depKey, struct{}{}, root)
		}
		return root
	}

	visited := make(map[string]bool)
	visitService = func(dep Dependency) string {
		key := "service:" + instanceKey(dep.Name, dep.Args)
		if visited[key] {
			return key
		}
		visited[key] = true
		byKey[key] = dep
		g.AddVertex(key)

		sc, ok := s.cfg.Services[dep.Name]
		if !ok {
			return key
		}
		for _, nested := range sc.Wants {
			nestedKey := visitService(nested)
			g.AddEdge(nestedKey, struct{}{}, key)
		}
		for _, nested := range sc.Needs {
			nestedKey := visitService(nested)
			g.AddEdge(nestedKey, struct{}{}, key)
		}
		return key
	}

	root := visitSphere(sp)

	order, err := g.Flatten()
	if err != nil {
		return nil, fmt.Errorf("supervisor: sphere %q: %w", sp.Name, err)
	}

	var deps []Dependency
	for _, key := range order {
		if key == root {
			continue
		}
		if dep, ok := byKey[key]; ok {
			deps = append(deps, dep)
		}
	}
	return deps, nil
}

// startDependency resolves dep's arguments against its target service and
// starts a new Instance for it, unless an identical instance is already
// running.
func (s *Supervisor) startDependency(dep Dependency) error {
	sc, ok := s.cfg.Services[dep.Name]
	if !ok {
		return fmt.Errorf("supervisor: unknown service %q", dep.Name)
	}

	args, err := ResolveArguments(sc.Service, dep.Args)
	if err != nil {
		return fmt.Errorf("supervisor: %s: %w", dep.Name, err)
	}

	key := instanceKey(dep.Name, args)
	if existing, ok := s.instances[key]; ok && existing.State() != Terminated {
		return nil
	}

	inst := &Instance{Name: dep.Name, Args: args}
	if err := inst.Start(sc, nil); err != nil {
		return err
	}
	s.instances[key] = inst
	return nil
}
