// Package vars implements the layered variable store used during execution.
// Script-level SetVar bindings shadow CLI seeds, which shadow environment
// imports.
package vars

import (
	"os"
	"regexp"
	"sort"
	"strings"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,}$`)

// placeholderPattern finds $NAME references left after expansion
var placeholderPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// anglePattern matches the <NAME> placeholder form. Restricted to ALL_CAPS
// so selectors and markup-like operands (<div>, <input>) are left alone.
var anglePattern = regexp.MustCompile(`<([A-Z][A-Z0-9_]{2,})>`)

// IdentifierPattern matches ALL_CAPS identifiers the way expressions
// reference variables, without the dollar sign.
var IdentifierPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9_]{2,}\b`)

// Store holds variable bindings with layered precedence. A Store may be a
// child of another; children add iteration-scoped bindings that fall back
// to the parent on miss.
type Store struct {
	script map[string]string
	cli    map[string]string
	env    map[string]string
	parent *Store
}

// NewStore creates an empty root store.
func NewStore() *Store {
	return &Store{
		script: make(map[string]string),
		cli:    make(map[string]string),
		env:    make(map[string]string),
	}
}

// SeedEnv imports ALL_CAPS process environment variables into the env layer.
func (s *Store) SeedEnv() {
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 && envVarPattern.MatchString(parts[0]) {
			s.env[parts[0]] = parts[1]
		}
	}
}

// SeedCLI records variables given on the command line (--var NAME=value).
func (s *Store) SeedCLI(seed map[string]string) {
	for k, v := range seed {
		s.cli[k] = v
	}
}

// Set binds a variable in the script layer, shadowing seeds.
func (s *Store) Set(name, value string) {
	s.script[name] = value
}

// Get resolves a name through the layers: script, then CLI, then env,
// then the parent store.
func (s *Store) Get(name string) (string, bool) {
	if v, ok := s.script[name]; ok {
		return v, true
	}
	if v, ok := s.cli[name]; ok {
		return v, true
	}
	if v, ok := s.env[name]; ok {
		return v, true
	}
	if s.parent != nil {
		return s.parent.Get(name)
	}
	return "", false
}

// Child creates an iteration-scoped store. The bindings shadow everything
// in the parent; Set on the child does not leak into the parent.
func (s *Store) Child(bindings map[string]string) *Store {
	child := NewStore()
	child.parent = s
	for k, v := range bindings {
		child.script[k] = v
	}
	return child
}

// Names returns every visible variable name, including inherited ones.
func (s *Store) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for st := s; st != nil; st = st.parent {
		for _, layer := range []map[string]string{st.script, st.cli, st.env} {
			for name := range layer {
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
	}
	sort.Strings(names)
	return names
}

// Expand replaces $NAME and <NAME> references in text with their bound
// values. Longer names are substituted first so $USER_ID never partially
// matches $USER. Unbound placeholders are left verbatim and reported as
// warnings.
func (s *Store) Expand(text string) (string, []string) {
	if !strings.Contains(text, "$") && !strings.Contains(text, "<") {
		return text, nil
	}

	if strings.Contains(text, "$") {
		names := s.Names()
		sort.Slice(names, func(i, j int) bool {
			return len(names[i]) > len(names[j])
		})
		for _, name := range names {
			value, _ := s.Get(name)
			text = expandDollarVar(text, name, value)
		}
	}

	var warnings []string
	text = anglePattern.ReplaceAllStringFunc(text, func(m string) string {
		name := m[1 : len(m)-1]
		if value, ok := s.Get(name); ok {
			return value
		}
		warnings = append(warnings, "unresolved variable <"+name+">")
		return m
	})

	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		warnings = append(warnings, "unresolved variable $"+m[1])
	}
	return text, warnings
}

// expandDollarVar replaces $NAME with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		// A longer identifier continuing past the name is a different variable.
		endPos := pos + len(pattern)
		if endPos < len(text) {
			next := text[endPos]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
				(next >= '0' && next <= '9') || next == '_' {
				idx = endPos
				continue
			}
		}

		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}
