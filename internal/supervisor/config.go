// Package supervisor implements qinit's service and sphere model: declarative
// TOML unit files, cross-reference validation, dependency-ordered sphere
// activation, and privilege-dropping process supervision.
package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Argument describes one named parameter a service's command line accepts.
type Argument struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Required    bool   `toml:"required"`
	Default     string `toml:"default"`
}

// ServiceDefinition is the "[service]" table of a .service unit: the command
// template and the arguments it accepts.
type ServiceDefinition struct {
	Command   string     `toml:"command"`
	Arguments []Argument `toml:"arguments"`
}

// HasArgument reports whether name is one of the service's declared
// arguments.
func (s ServiceDefinition) HasArgument(name string) bool {
	for _, a := range s.Arguments {
		if a.Name == name {
			return true
		}
	}
	return false
}

// MissingArguments returns the names of every required argument not present
// in supplied, sorted for deterministic error messages. A "needs" dependency
// must supply every required argument of its target; "wants" is allowed a
// partial match, so only needs-validation calls this.
func (s ServiceDefinition) MissingArguments(supplied map[string]string) []string {
	var missing []string
	for _, a := range s.Arguments {
		if !a.Required {
			continue
		}
		if _, ok := supplied[a.Name]; ok {
			continue
		}
		missing = append(missing, a.Name)
	}
	sort.Strings(missing)
	return missing
}

// Dependency names another service (by unit name) that must be started
// alongside this one, with the argument values to invoke it with.
type Dependency struct {
	Name string            `toml:"name"`
	Args map[string]string `toml:"args"`
}

// Permissions controls which user and group a service's process runs as.
// Create is read from the unit file, but no account is ever created: an
// unknown user or group makes the service fail to start.
type Permissions struct {
	User   string `toml:"user"`
	Group  string `toml:"group"`
	Create bool   `toml:"create"`
}

// defaultPermissions matches a unit file that omits the [permissions] table
// entirely: run as root, don't create an account.
func defaultPermissions() Permissions {
	return Permissions{User: "root", Group: "root", Create: false}
}

// ServiceConfig is one fully parsed ".service" unit file.
type ServiceConfig struct {
	Name             string
	Description      string            `toml:"description"`
	Service          ServiceDefinition `toml:"service"`
	Wants            []Dependency      `toml:"wants"`
	Needs            []Dependency      `toml:"needs"`
	Permissions      Permissions       `toml:"permissions"`
	RuntimeDirectory string            `toml:"runtime_directory"`

	// errors accumulates non-fatal validation findings raised while loading
	// this unit, surfaced by Config.Validate.
	errors []ValidationError
}

// SphereConfig is one fully parsed ".sphere" unit file: a named group of
// services (and other spheres) that activate together.
type SphereConfig struct {
	Name        string
	Description string       `toml:"description"`
	Wants       []Dependency `toml:"wants"`
	Spheres     []string     `toml:"spheres"`
}

// ValidationError is one problem Config.Validate found. Fatal errors mean
// the referencing unit cannot be activated; non-fatal ones are reported but
// don't block activation.
type ValidationError struct {
	Unit    string
	Message string
	Fatal   bool
}

func (e ValidationError) Error() string {
	kind := "warning"
	if e.Fatal {
		kind = "error"
	}
	return fmt.Sprintf("supervisor: %s in %q: %s", kind, e.Unit, e.Message)
}

// ValidationResult is the outcome of Config.Validate: every problem found
// across every loaded unit.
type ValidationResult struct {
	Errors []ValidationError
}

// Fatal reports whether the result contains at least one fatal error.
func (r ValidationResult) Fatal() bool {
	for _, e := range r.Errors {
		if e.Fatal {
			return true
		}
	}
	return false
}

// Config is the full set of services and spheres qinit knows about, loaded
// from a directory of unit files.
type Config struct {
	Services map[string]*ServiceConfig
	Spheres  map[string]*SphereConfig
}

// NewConfig returns an empty Config.
func NewConfig() *Config {
	return &Config{
		Services: make(map[string]*ServiceConfig),
		Spheres:  make(map[string]*SphereConfig),
	}
}

// LoadDirectory loads every ".service" and ".sphere" file in dir into cfg.
func LoadDirectory(dir string) (*Config, error) {
	cfg := NewConfig()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		switch {
		case strings.HasSuffix(entry.Name(), ".service"):
			if err := cfg.loadServiceFile(full); err != nil {
				return nil, err
			}
		case strings.HasSuffix(entry.Name(), ".sphere"):
			if err := cfg.loadSphereFile(full); err != nil {
				return nil, err
			}
		}
	}
	return cfg, nil
}

func unitName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (c *Config) loadServiceFile(path string) error {
	sc := &ServiceConfig{Permissions: defaultPermissions()}
	if _, err := toml.DecodeFile(path, sc); err != nil {
		return fmt.Errorf("supervisor: decoding %s: %w", path, err)
	}
	sc.Name = unitName(path)
	if sc.Permissions.User == "" {
		sc.Permissions.User = "root"
	}
	if sc.Permissions.Group == "" {
		sc.Permissions.Group = "root"
	}
	c.Services[sc.Name] = sc
	return nil
}

func (c *Config) loadSphereFile(path string) error {
	sp := &SphereConfig{}
	if _, err := toml.DecodeFile(path, sp); err != nil {
		return fmt.Errorf("supervisor: decoding %s: %w", path, err)
	}
	sp.Name = unitName(path)
	c.Spheres[sp.Name] = sp
	return nil
}

// AddService registers sc directly, bypassing file loading; used by tests
// and by units constructed programmatically.
func (c *Config) AddService(sc *ServiceConfig) { c.Services[sc.Name] = sc }

// AddSphere registers sp directly.
func (c *Config) AddSphere(sp *SphereConfig) { c.Spheres[sp.Name] = sp }
