package supervisor

import (
	"fmt"
	"strings"
)

// ResolveArguments merges a dependency's supplied args with its target
// service's declared defaults, and fails if a required argument is still
// missing.
func ResolveArguments(svc ServiceDefinition, supplied map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(svc.Arguments))
	for _, a := range svc.Arguments {
		if v, ok := supplied[a.Name]; ok {
			resolved[a.Name] = v
			continue
		}
		if a.Default != "" {
			resolved[a.Name] = a.Default
			continue
		}
		if a.Required {
			return nil, fmt.Errorf("supervisor: missing required argument %q", a.Name)
		}
		resolved[a.Name] = ""
	}
	return resolved, nil
}

// TemplateCommand substitutes every "${NAME}" placeholder in command with
// args["NAME"], then splits the result into a command and its argv the way
// a shell would split on whitespace (no quoting support: qinit's own
// manifests are trusted input).
func TemplateCommand(command string, args map[string]string) (string, []string) {
	for name, value := range args {
		command = strings.ReplaceAll(command, "${"+name+"}", value)
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
