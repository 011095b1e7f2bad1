// Package version compares artifact versions and resolves version ranges.
//
// Versions are ordered item wise, the way Maven orders them, so that
// semantic versions and versions such as 1.2.3.Final share one ordering.
// Semantic version constraints such as ^1.2 are matched with
// github.com/Masterminds/semver/v3.
package version

import (
	"cmp"
	"fmt"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Compare compares a and b, returning -1, 0 or 1.
//
// A version is split into numeric and qualifier items at '.', '-' and '_'
// and where digits and letters meet. A leading "v" and build metadata after
// '+' are ignored. Items rank
//
//	alpha < beta < milestone < rc = cr < snapshot < 0 = final = ga = release < sp < other qualifiers < 1 < 2 ...
//
// and missing trailing items count as 0. Hence 1.0 equals 1.0.0 and
// 1.0.Final, and 1.0-rc1 is below 1.0. Every version maps to one sequence of
// items, which keeps the ordering transitive.
func Compare(a, b string) int {
	if a == b {
		return 0
	}
	ia, ib := items(a), items(b)
	for i := range max(len(ia), len(ib)) {
		if c := itemAt(ia, i).compare(itemAt(ib, i)); c != 0 {
			return c
		}
	}
	return 0
}

const (
	rankAlpha = iota
	rankBeta
	rankMilestone
	rankCandidate
	rankSnapshot
	rankRelease
	rankServicePack
	rankQualifier
	rankNumber
)

var qualifiers = map[string]int{
	"alpha":     rankAlpha,
	"beta":      rankBeta,
	"milestone": rankMilestone,
	"rc":        rankCandidate,
	"cr":        rankCandidate,
	"snapshot":  rankSnapshot,
	"final":     rankRelease,
	"ga":        rankRelease,
	"release":   rankRelease,
	"sp":        rankServicePack,
}

// item is one component of a version. text holds numbers without leading
// zeros and unknown qualifiers in lower case.
type item struct {
	rank int
	text string
}

func (i item) compare(o item) int {
	if c := cmp.Compare(i.rank, o.rank); c != 0 {
		return c
	}
	if i.rank == rankNumber {
		if c := cmp.Compare(len(i.text), len(o.text)); c != 0 {
			return c
		}
	}
	return cmp.Compare(i.text, o.text)
}

func itemAt(items []item, i int) item {
	if i < len(items) {
		return items[i]
	}
	return item{rank: rankRelease}
}

func newItem(s string) item {
	if isDigit(s[0]) {
		n := strings.TrimLeft(s, "0")
		if n == "" {
			return item{rank: rankRelease}
		}
		return item{rank: rankNumber, text: n}
	}
	if rank, ok := qualifiers[s]; ok {
		return item{rank: rank}
	}
	return item{rank: rankQualifier, text: s}
}

func items(v string) []item {
	v = strings.ToLower(strings.TrimSpace(v))
	v, _, _ = strings.Cut(v, "+")
	if len(v) > 1 && v[0] == 'v' && isDigit(v[1]) {
		v = v[1:]
	}
	var out []item
	start := 0
	for i := 0; i <= len(v); i++ {
		switch {
		case i == len(v) || v[i] == '.' || v[i] == '-' || v[i] == '_':
			if i > start {
				out = append(out, newItem(v[start:i]))
			}
			start = i + 1
		case i > start && isDigit(v[i]) != isDigit(v[i-1]):
			out = append(out, newItem(v[start:i]))
			start = i
		}
	}
	return out
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// IsRequirement reports whether v is a range or constraint rather than a
// concrete version.
func IsRequirement(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	switch v[0] {
	case '[', '(', '^', '~', '>', '<', '=':
		return true
	}
	return false
}

// Requirement matches concrete versions.
type Requirement interface {
	Matches(version string) bool
	String() string
}

// ParseRequirement parses a Maven range such as [1.0,2.0) or (,1.5],[2.0,)
// or a semantic version constraint such as ^1.2 or ">= 1.0, < 2".
func ParseRequirement(raw string) (Requirement, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty version requirement")
	}
	if raw[0] == '[' || raw[0] == '(' {
		return parseRange(raw)
	}
	c, err := mm.NewConstraint(raw)
	if err != nil {
		return nil, fmt.Errorf("parse version constraint %q: %w", raw, err)
	}
	return &constraint{raw: raw, c: c}, nil
}

// Select returns the highest of the available versions matching req.
// Available versions are expected in any order.
func Select(req Requirement, available []string) (string, bool) {
	var best string
	found := false
	for _, candidate := range available {
		if !req.Matches(candidate) {
			continue
		}
		if !found || Compare(candidate, best) > 0 {
			best = candidate
			found = true
		}
	}
	return best, found
}

type constraint struct {
	raw string
	c   *mm.Constraints
}

func (c *constraint) Matches(version string) bool {
	v, err := mm.NewVersion(version)
	if err != nil {
		return false
	}
	return c.c.Check(v)
}

func (c *constraint) String() string { return c.raw }

type bound struct {
	version   string
	inclusive bool
}

type interval struct {
	lower, upper *bound
}

func (i interval) matches(v string) bool {
	if i.lower != nil {
		c := Compare(v, i.lower.version)
		if c < 0 || (c == 0 && !i.lower.inclusive) {
			return false
		}
	}
	if i.upper != nil {
		c := Compare(v, i.upper.version)
		if c > 0 || (c == 0 && !i.upper.inclusive) {
			return false
		}
	}
	return true
}

// mavenRange is a union of intervals.
type mavenRange struct {
	raw       string
	intervals []interval
}

func (r *mavenRange) Matches(version string) bool {
	for _, i := range r.intervals {
		if i.matches(version) {
			return true
		}
	}
	return false
}

func (r *mavenRange) String() string { return r.raw }

func parseRange(raw string) (*mavenRange, error) {
	r := &mavenRange{raw: raw}
	rest := raw
	for rest != "" {
		open := rest[0]
		if open != '[' && open != '(' {
			return nil, fmt.Errorf("invalid version range %q: expected [ or ( at %q", raw, rest)
		}
		end := strings.IndexAny(rest, "])")
		if end < 0 {
			return nil, fmt.Errorf("invalid version range %q: unterminated interval", raw)
		}
		i, err := parseInterval(open, rest[1:end], rest[end])
		if err != nil {
			return nil, fmt.Errorf("invalid version range %q: %w", raw, err)
		}
		r.intervals = append(r.intervals, i)
		rest = strings.TrimPrefix(strings.TrimSpace(rest[end+1:]), ",")
		rest = strings.TrimSpace(rest)
	}
	return r, nil
}

func parseInterval(open byte, body string, closing byte) (interval, error) {
	lowerInclusive, upperInclusive := open == '[', closing == ']'
	lo, hi, isPair := strings.Cut(body, ",")
	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	if !isPair {
		if lo == "" || !lowerInclusive || !upperInclusive {
			return interval{}, fmt.Errorf("exact version must be written as [version]")
		}
		b := &bound{version: lo, inclusive: true}
		return interval{lower: b, upper: b}, nil
	}
	var i interval
	if lo != "" {
		i.lower = &bound{version: lo, inclusive: lowerInclusive}
	}
	if hi != "" {
		i.upper = &bound{version: hi, inclusive: upperInclusive}
	}
	if i.lower != nil && i.upper != nil && Compare(i.lower.version, i.upper.version) > 0 {
		return interval{}, fmt.Errorf("lower bound %s is above upper bound %s", lo, hi)
	}
	return i, nil
}
