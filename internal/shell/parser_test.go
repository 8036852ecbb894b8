package shell

import (
	"reflect"
	"testing"
)

func TestParseExpression_Simple(t *testing.T) {
	words, err := ParseExpression("/bin/sh -c 'echo \"hello world\"'")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/bin/sh", "-c", `echo "hello world"`}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("words = %#v, want %#v", words, want)
	}
}

func TestParseExpression_CombinedParts(t *testing.T) {
	words, err := ParseExpression(`abc'test'"literal"`)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"abctestliteral"}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("words = %#v, want %#v", words, want)
	}
}

func TestParseExpression_Escapes(t *testing.T) {
	words, err := ParseExpression(`"a\nb\tc"`)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a\nb\tc"}
	if !reflect.DeepEqual(words, want) {
		t.Fatalf("words = %#v, want %#v", words, want)
	}
}

func TestParseExpression_HexEscape(t *testing.T) {
	words, err := ParseExpression(`'\u1fb8\''`)
	if err != nil {
		t.Fatal(err)
	}
	want := string(rune(0x1fb8)) + "'"
	if words[0] != want {
		t.Fatalf("words[0] = %q, want %q", words[0], want)
	}
}

func TestParseExpression_UnicodeEscape(t *testing.T) {
	words, err := ParseExpression(`"\u1fb8"`)
	if err != nil {
		t.Fatal(err)
	}
	want := string(rune(0x1fb8))
	if words[0] != want {
		t.Fatalf("words[0] = %q, want %q", words[0], want)
	}
}

func TestParseExpression_UnterminatedQuote(t *testing.T) {
	_, err := ParseExpression(`echo "hello`)
	if err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestParseExpression_InvalidEscapeInQuote(t *testing.T) {
	_, err := ParseExpression(`"\z"`)
	if err == nil {
		t.Fatal("expected error for invalid escape sequence")
	}
}

func TestParsePipeline(t *testing.T) {
	stages, err := ParsePipeline("echo hi | cat")
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"echo", "hi"}, {"cat"}}
	if !reflect.DeepEqual(stages, want) {
		t.Fatalf("stages = %#v, want %#v", stages, want)
	}
}

func TestParsePipeline_QuotedPipeCharacter(t *testing.T) {
	stages, err := ParsePipeline(`echo "a|b"`)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"echo", "a|b"}}
	if !reflect.DeepEqual(stages, want) {
		t.Fatalf("stages = %#v, want %#v", stages, want)
	}
}
