package artifact

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

type Scope string

const (
	ScopeCompile  Scope = "compile"
	ScopeRuntime  Scope = "runtime"
	ScopeProvided Scope = "provided"
	ScopeTest     Scope = "test"
)

// Normalize maps the empty scope to compile.
func (s Scope) Normalize() Scope {
	if s == "" {
		return ScopeCompile
	}
	return s
}

// Transitive reports whether edges of this scope are expanded beyond their target.
func (s Scope) Transitive() bool {
	switch s.Normalize() {
	case ScopeCompile, ScopeRuntime:
		return true
	default:
		return false
	}
}

func (s Scope) Valid() bool {
	switch s.Normalize() {
	case ScopeCompile, ScopeRuntime, ScopeProvided, ScopeTest:
		return true
	default:
		return false
	}
}

// Wildcard matches any group or artifact id in an Exclusion.
const Wildcard = "*"

// Exclusion removes every artifact matching group and artifact id from a subtree,
// regardless of classifier and type. Both parts are glob patterns, so
// "org.acme.*:*" excludes every artifact of the org.acme groups.
type Exclusion struct {
	GroupID    string `json:"groupId"`
	ArtifactID string `json:"artifactId"`
}

func (e Exclusion) Matches(k Key) bool {
	return matchPattern(e.GroupID, k.GroupID) && matchPattern(e.ArtifactID, k.ArtifactID)
}

// compiled patterns, shared by all exclusions
var patterns sync.Map

func matchPattern(pattern, s string) bool {
	switch {
	case pattern == Wildcard:
		return true
	case !strings.ContainsAny(pattern, "*?[{"):
		return pattern == s
	}
	g, err := compilePattern(pattern)
	if err != nil {
		return false
	}
	return g.Match(s)
}

func compilePattern(pattern string) (glob.Glob, error) {
	if g, ok := patterns.Load(pattern); ok {
		return g.(glob.Glob), nil //nolint:forcetypeassert // only globs are stored
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	patterns.Store(pattern, g)
	return g, nil
}

func (e Exclusion) String() string {
	return e.GroupID + ":" + e.ArtifactID
}

// ParseExclusion parses group:artifact, either part may be "*" or a glob pattern.
func ParseExclusion(s string) (Exclusion, error) {
	group, art, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || group == "" || art == "" || strings.Contains(art, ":") {
		return Exclusion{}, fmt.Errorf("invalid exclusion %q, expected group:artifact", s)
	}
	for _, p := range []string{group, art} {
		if _, err := compilePattern(p); err != nil {
			return Exclusion{}, fmt.Errorf("invalid exclusion %q: %w", s, err)
		}
	}
	return Exclusion{GroupID: group, ArtifactID: art}, nil
}

// Exclusions is an ordered set of exclusions.
type Exclusions []Exclusion

func (e Exclusions) Excludes(k Key) bool {
	return slices.ContainsFunc(e, func(ex Exclusion) bool {
		return ex.Matches(k)
	})
}

// Union returns e extended by the entries of other it does not contain yet.
// Neither input is modified.
func (e Exclusions) Union(other Exclusions) Exclusions {
	if len(other) == 0 {
		return e
	}
	out := slices.Clone(e)
	for _, ex := range other {
		if !slices.Contains(out, ex) {
			out = append(out, ex)
		}
	}
	return out
}

// Intersect returns the entries of e that other contains as well.
func (e Exclusions) Intersect(other Exclusions) Exclusions {
	var out Exclusions
	for _, ex := range e {
		if slices.Contains(other, ex) {
			out = append(out, ex)
		}
	}
	return out
}

// SubsetOf reports whether every entry of e is contained in other. A subtree
// under e then keeps at least the artifacts it keeps under other.
func (e Exclusions) SubsetOf(other Exclusions) bool {
	for _, ex := range e {
		if !slices.Contains(other, ex) {
			return false
		}
	}
	return true
}

// Dependency is a directed edge from a declaring artifact to its target.
type Dependency struct {
	Coordinate `json:",inline"`
	Scope      Scope       `json:"scope,omitempty"`
	Optional   bool        `json:"optional,omitempty"`
	Exclusions []Exclusion `json:"exclusions,omitempty"`
}

// NewDependency returns a compile scoped, required edge to c.
func NewDependency(c Coordinate) Dependency {
	return Dependency{Coordinate: c, Scope: ScopeCompile}
}

func (d Dependency) String() string {
	var b strings.Builder
	b.WriteString(d.Coordinate.String())
	b.WriteString(" (")
	b.WriteString(string(d.Scope.Normalize()))
	if d.Optional {
		b.WriteString(", optional")
	}
	b.WriteString(")")
	return b.String()
}
