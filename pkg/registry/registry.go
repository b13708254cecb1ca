// Package registry holds the set of library basenames that belong to the
// Oracle Instant Client package family.
package registry

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Matcher reports whether a library basename is recognized.
type Matcher interface {
	Match(basename string) bool
	String() string
}

type exact string

func (e exact) Match(basename string) bool { return string(e) == basename }
func (e exact) String() string             { return string(e) }

type pattern struct {
	re *regexp.Regexp
}

func (p pattern) Match(basename string) bool { return p.re.MatchString(basename) }
func (p pattern) String() string             { return p.re.String() }

// Exact returns a Matcher that accepts only name.
func Exact(name string) Matcher {
	return exact(name)
}

// Pattern compiles expr into a Matcher. The expression is anchored at both
// ends if it isn't already.
func Pattern(expr string) (Matcher, error) {
	if !strings.HasPrefix(expr, "^") {
		expr = "^" + expr
	}

	if !strings.HasSuffix(expr, "$") {
		expr = expr + "$"
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}

	return pattern{re: re}, nil
}

// MustPattern is like Pattern but panics on an invalid expression.
func MustPattern(expr string) Matcher {
	m, err := Pattern(expr)
	if err != nil {
		panic(err)
	}

	return m
}

// Parse turns a configured entry into a Matcher. Entries wrapped in slashes
// (/expr/) are patterns, everything else is an exact basename.
func Parse(entry string) (Matcher, error) {
	if len(entry) >= 2 && entry[0] == '/' && entry[len(entry)-1] == '/' {
		return Pattern(entry[1 : len(entry)-1])
	}

	return Exact(entry), nil
}

type MatchMode int

const (
	// MatchAny accepts a basename recognized by any matcher.
	MatchAny MatchMode = iota

	// MatchPrimary only accepts the reference matcher, the main client
	// shared object.
	MatchPrimary
)

func (m MatchMode) String() string {
	switch m {
	case MatchAny:
		return "any"
	case MatchPrimary:
		return "primary"
	default:
		return "unknown"
	}
}

// Registry is an ordered, read-only list of matchers. The first matcher is
// the primary one and is what identifies an install directory.
type Registry struct {
	matchers []Matcher
}

func New(primary Matcher, rest ...Matcher) *Registry {
	ms := make([]Matcher, 0, len(rest)+1)
	ms = append(ms, primary)
	ms = append(ms, rest...)

	return &Registry{matchers: ms}
}

// With returns a new registry with extra appended after the existing
// matchers.
func (r *Registry) With(extra ...Matcher) *Registry {
	ms := make([]Matcher, 0, len(r.matchers)+len(extra))
	ms = append(ms, r.matchers...)
	ms = append(ms, extra...)

	return &Registry{matchers: ms}
}

func (r *Registry) Primary() Matcher {
	return r.matchers[0]
}

func (r *Registry) Matchers() []Matcher {
	return append([]Matcher(nil), r.matchers...)
}

// Match reports whether the basename of path is recognized under mode.
func (r *Registry) Match(path string, mode MatchMode) bool {
	base := filepath.Base(path)

	if mode == MatchPrimary {
		return r.matchers[0].Match(base)
	}

	for _, m := range r.matchers {
		if m.Match(base) {
			return true
		}
	}

	return false
}

// Default recognizes the libraries of the basic, basiclite, sqlplus and jdbc
// packages independent of the client version.
func Default() *Registry {
	return New(
		MustPattern(`libclntsh\.dylib\.\d+\.\d`), // basic, basiclite
		MustPattern(`libnnz\d+\.dylib`),          // basic, basiclite
		MustPattern(`libocci\.dylib\.\d+\.\d`),   // basic, basiclite
		Exact("libociei.dylib"),                  // basic
		Exact("libociicus.dylib"),                // basiclite
		MustPattern(`libocijdbc\d+\.dylib`),      // basic, basiclite
		Exact("libsqlplus.dylib"),                // sqlplus
		Exact("libsqlplusic.dylib"),              // sqlplus
		MustPattern(`libheteroxa\d+\.dylib`),     // jdbc
	)
}

// Legacy recognizes exactly the 11.1 client libraries.
func Legacy() *Registry {
	return New(
		Exact("libclntsh.dylib.11.1"),
		Exact("libnnz11.dylib"),
		Exact("libocci.dylib.11.1"),
		Exact("libociei.dylib"),
		Exact("libociicus.dylib"),
		Exact("libocijdbc11.dylib"),
		Exact("libsqlplus.dylib"),
		Exact("libsqlplusic.dylib"),
		Exact("libheteroxa11.dylib"),
	)
}
