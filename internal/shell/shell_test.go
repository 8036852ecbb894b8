package shell

import (
	"bytes"
	"testing"
)

func TestShell_Evaluate_SetsExitStatus(t *testing.T) {
	var out, errOut bytes.Buffer
	s := New(bytes.NewReader(nil), &out, &errOut)

	s.Evaluate("echo hi | cat")
	if out.String() != "hi\n" {
		t.Fatalf("stdout = %q", out.String())
	}
	if s.Environment["?"] != "0" {
		t.Fatalf("$? = %q, want 0", s.Environment["?"])
	}
}

func TestShell_Evaluate_ParseError(t *testing.T) {
	var out, errOut bytes.Buffer
	s := New(bytes.NewReader(nil), &out, &errOut)

	s.Evaluate(`echo "unterminated`)
	if s.Environment["?"] == "0" || s.Environment["?"] == "" {
		t.Fatalf("$? = %q, expected non-zero", s.Environment["?"])
	}
	if errOut.Len() == 0 {
		t.Fatal("expected a parse error message on stderr")
	}
}

func TestShell_DefaultEnvironment(t *testing.T) {
	s := New(bytes.NewReader(nil), &bytes.Buffer{}, &bytes.Buffer{})
	if s.Environment["PATH"] != "/bin:/usr/bin" {
		t.Fatalf("PATH = %q", s.Environment["PATH"])
	}
	if s.Environment["PS1"] != "$ " {
		t.Fatalf("PS1 = %q", s.Environment["PS1"])
	}
}
