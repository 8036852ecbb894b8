package supervisor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "getty.service", `
description = "login getty"

[service]
command = "/sbin/getty ${TTY}"

[[service.arguments]]
name = "TTY"
required = true

[permissions]
user = "root"
group = "root"
`)
	writeUnit(t, dir, "multi-user.sphere", `
description = "default target"

[[wants]]
name = "getty"
args = { TTY = "tty1" }
`)

	cfg, err := LoadDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Services["getty"]; !ok {
		t.Fatal("expected getty service to be loaded")
	}
	if _, ok := cfg.Spheres["multi-user"]; !ok {
		t.Fatal("expected multi-user sphere to be loaded")
	}

	result := cfg.Validate()
	if result.Fatal() {
		t.Fatalf("unexpected fatal errors: %v", result.Errors)
	}
}

func TestValidate_UnknownDependency(t *testing.T) {
	cfg := NewConfig()
	cfg.AddService(&ServiceConfig{
		Name:    "a",
		Service: ServiceDefinition{Command: "/bin/a"},
		Wants:   []Dependency{{Name: "missing"}},
	})

	result := cfg.Validate()
	if !result.Fatal() {
		t.Fatal("expected a fatal error for unknown dependency")
	}
}

func TestValidate_UndeclaredArgument(t *testing.T) {
	cfg := NewConfig()
	cfg.AddService(&ServiceConfig{
		Name:    "target",
		Service: ServiceDefinition{Command: "/bin/target"},
	})
	cfg.AddService(&ServiceConfig{
		Name:    "a",
		Service: ServiceDefinition{Command: "/bin/a"},
		Wants:   []Dependency{{Name: "target", Args: map[string]string{"X": "1"}}},
	})

	result := cfg.Validate()
	if !result.Fatal() {
		t.Fatal("expected a fatal error for undeclared argument")
	}
}

func TestValidate_NeedsMissingArgument(t *testing.T) {
	cfg := NewConfig()
	cfg.AddService(&ServiceConfig{
		Name: "target",
		Service: ServiceDefinition{
			Command: "/bin/target ${A} ${B}",
			Arguments: []Argument{
				{Name: "A", Required: true},
				{Name: "B", Required: true},
			},
		},
	})
	cfg.AddService(&ServiceConfig{
		Name:  "a",
		Service: ServiceDefinition{Command: "/bin/a"},
		Needs: []Dependency{{Name: "target", Args: map[string]string{"A": "1"}}},
	})

	result := cfg.Validate()
	if !result.Fatal() {
		t.Fatal("expected a fatal error for a needs dependency missing a required argument")
	}
	found := false
	for _, e := range result.Errors {
		if containsSubstring(e.Message, "missing arguments: B") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing-arguments message naming B, got: %v", result.Errors)
	}
}

func TestValidate_WantsAllowsPartialArguments(t *testing.T) {
	cfg := NewConfig()
	cfg.AddService(&ServiceConfig{
		Name: "target",
		Service: ServiceDefinition{
			Command: "/bin/target ${A} ${B}",
			Arguments: []Argument{
				{Name: "A", Required: true},
				{Name: "B", Required: true},
			},
		},
	})
	cfg.AddService(&ServiceConfig{
		Name:  "a",
		Service: ServiceDefinition{Command: "/bin/a"},
		Wants: []Dependency{{Name: "target", Args: map[string]string{"A": "1"}}},
	})

	result := cfg.Validate()
	if result.Fatal() {
		t.Fatalf("wants should tolerate a partial argument match, got: %v", result.Errors)
	}
}

func TestValidate_SphereCycle(t *testing.T) {
	cfg := NewConfig()
	cfg.AddSphere(&SphereConfig{Name: "a", Spheres: []string{"b"}})
	cfg.AddSphere(&SphereConfig{Name: "b", Spheres: []string{"a"}})

	result := cfg.Validate()
	if !result.Fatal() {
		t.Fatal("expected a fatal cycle error")
	}
	found := false
	for _, e := range result.Errors {
		if e.Message != "" && containsSubstring(e.Message, "sphere depended on through flow") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected cycle-flow message, got: %v", result.Errors)
	}
}

func containsSubstring(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func writeUnit(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
