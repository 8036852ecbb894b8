package udev

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joeycumines/qsys/internal/kmod"
)

// AliasMatcher compiles a modules.alias file into regular expressions, and
// resolves a device's MODALIAS string to the module names that claim it.
type AliasMatcher struct {
	rules []compiledRule
}

type compiledRule struct {
	re     *regexp.Regexp
	module string
}

// LoadAliasMatcher reads and compiles the modules.alias file at path.
func LoadAliasMatcher(path string) (*AliasMatcher, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rules, err := kmod.ParseAlias(f)
	if err != nil {
		return nil, err
	}

	m := &AliasMatcher{}
	for _, r := range rules {
		re, err := regexp.Compile(globToRegex(r.Pattern))
		if err != nil {
			return nil, fmt.Errorf("udev: compiling alias %q: %w", r.Pattern, err)
		}
		m.rules = append(m.rules, compiledRule{re: re, module: r.Module})
	}
	return m, nil
}

// Match returns every module name whose glob pattern matches modalias.
func (m *AliasMatcher) Match(modalias string) []string {
	var out []string
	for _, r := range m.rules {
		if r.re.MatchString(modalias) {
			out = append(out, r.module)
		}
	}
	return out
}

// globToRegex turns a modules.alias glob ("*" any run, "?" any one char)
// into an anchored regular expression.
func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String()
}

// HandleEvent decodes a forwarded uevent JSON frame and, if it carries a
// MODALIAS field, loads every module the matcher resolves it to.
func HandleEvent(frame []byte, matcher *AliasMatcher, modulesRoot string) error {
	var fields map[string]string
	if err := json.Unmarshal(frame, &fields); err != nil {
		return fmt.Errorf("udev: decoding event: %w", err)
	}

	modalias, ok := fields["MODALIAS"]
	if !ok {
		return nil
	}

	var firstErr error
	for _, name := range matcher.Match(modalias) {
		if err := kmod.LoadModule(modulesRoot, name, ""); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
