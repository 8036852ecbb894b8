package supervisor

import (
	"reflect"
	"testing"
)

func TestResolveArguments_DefaultsAndSupplied(t *testing.T) {
	svc := ServiceDefinition{Arguments: []Argument{
		{Name: "TTY", Required: true},
		{Name: "BAUD", Default: "9600"},
	}}
	resolved, err := ResolveArguments(svc, map[string]string{"TTY": "tty1"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"TTY": "tty1", "BAUD": "9600"}
	if !reflect.DeepEqual(resolved, want) {
		t.Fatalf("resolved = %v, want %v", resolved, want)
	}
}

func TestResolveArguments_MissingRequired(t *testing.T) {
	svc := ServiceDefinition{Arguments: []Argument{{Name: "TTY", Required: true}}}
	if _, err := ResolveArguments(svc, nil); err == nil {
		t.Fatal("expected error for missing required argument")
	}
}

func TestTemplateCommand(t *testing.T) {
	cmd, argv := TemplateCommand("/sbin/getty ${TTY} ${BAUD}", map[string]string{"TTY": "tty1", "BAUD": "9600"})
	if cmd != "/sbin/getty" {
		t.Fatalf("cmd = %q", cmd)
	}
	if !reflect.DeepEqual(argv, []string{"tty1", "9600"}) {
		t.Fatalf("argv = %v", argv)
	}
}
