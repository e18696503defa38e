package policy

import (
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/dlclark/regexp2"
	"github.com/ryanuber/go-glob"
)

const (
	globPrefix      = "glob:"
	semverPrefix    = "semver:"
	regexpPrefix    = "regexp:"
	regexpAltPrefix = "regex:"

	matchTimeout = time.Second
)

var (
	// PatternAll matches everything.
	PatternAll = NewPattern(globPrefix + "*")
)

// Pattern provides an interface to match image tags.
type Pattern interface {
	// Matches returns true if the given image tag matches the pattern.
	Matches(tag string) bool
	// String returns the prefixed string representation.
	String() string
	// Valid returns true if the pattern is considered valid.
	Valid() bool
}

type GlobPattern string

// SemverPattern matches by semantic versioning.
// See https://semver.org/
type SemverPattern struct {
	pattern     string // pattern without prefix
	constraints *semver.Constraints
}

// RegexpPattern matches by regular expression. Lookaround is
// supported, so e.g. `^(?!.*latest).*$` excludes anything mentioning
// latest.
type RegexpPattern struct {
	pattern string // pattern without prefix
	regexp  *regexp2.Regexp
}

// NewPattern instantiates a Pattern according to the prefix it finds.
// The prefix can be either `regexp:` (default if omitted), `glob:` or
// `semver:`.
func NewPattern(pattern string) Pattern {
	switch {
	case strings.HasPrefix(pattern, semverPrefix):
		pattern = strings.TrimPrefix(pattern, semverPrefix)
		c, _ := semver.NewConstraint(pattern)
		return SemverPattern{pattern, c}
	case strings.HasPrefix(pattern, globPrefix):
		return GlobPattern(strings.TrimPrefix(pattern, globPrefix))
	case strings.HasPrefix(pattern, regexpAltPrefix):
		pattern = strings.TrimPrefix(pattern, regexpAltPrefix)
	default:
		pattern = strings.TrimPrefix(pattern, regexpPrefix)
	}
	r, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return RegexpPattern{pattern: pattern}
	}
	r.MatchTimeout = matchTimeout
	return RegexpPattern{pattern, r}
}

// Filter returns the tags matching p, in their original order.
func Filter(p Pattern, tags []string) []string {
	var matched []string
	for _, tag := range tags {
		if p.Matches(tag) {
			matched = append(matched, tag)
		}
	}
	return matched
}

func (g GlobPattern) Matches(tag string) bool {
	return glob.Glob(string(g), tag)
}

func (g GlobPattern) String() string {
	return globPrefix + string(g)
}

func (g GlobPattern) Valid() bool {
	return true
}

func (s SemverPattern) Matches(tag string) bool {
	v, err := semver.NewVersion(tag)
	if err != nil {
		return false
	}
	if s.constraints == nil {
		return false
	}
	return s.constraints.Check(v)
}

func (s SemverPattern) String() string {
	return semverPrefix + s.pattern
}

func (s SemverPattern) Valid() bool {
	return s.constraints != nil
}

func (r RegexpPattern) Matches(tag string) bool {
	if r.regexp == nil {
		return false
	}
	ok, err := r.regexp.MatchString(tag)
	return err == nil && ok
}

func (r RegexpPattern) String() string {
	return regexpPrefix + r.pattern
}

func (r RegexpPattern) Valid() bool {
	return r.regexp != nil
}
