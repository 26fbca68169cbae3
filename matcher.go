package eventbus

import (
	"fmt"
	"path"
	"regexp"
)

// PatternKind selects how a subscription pattern is evaluated against event types.
type PatternKind string

const (
	// PatternExact matches the event type verbatim.
	PatternExact PatternKind = "exact"
	// PatternGlob matches using path-style wildcards ("user.*", "order.?").
	PatternGlob PatternKind = "glob"
	// PatternRegex matches using a Go regular expression.
	PatternRegex PatternKind = "regex"
)

// Pattern describes a subscription match rule for SubscribePattern.
type Pattern struct {
	Kind PatternKind `json:"kind"`
	Expr string      `json:"expr"`
}

// matcher is the compiled form of a Pattern. It is a tagged variant over the
// match kind; the regexp is only populated for PatternRegex.
type matcher struct {
	kind PatternKind
	expr string
	re   *regexp.Regexp
}

// exactMatcher returns a matcher that only accepts the given event type.
func exactMatcher(eventType string) matcher {
	return matcher{kind: PatternExact, expr: eventType}
}

// compileMatcher validates and compiles a pattern. Unsupported kinds and
// malformed expressions fail here, before any event involvement.
func compileMatcher(p Pattern) (matcher, error) {
	switch p.Kind {
	case PatternExact:
		return matcher{kind: PatternExact, expr: p.Expr}, nil
	case PatternGlob:
		if _, err := path.Match(p.Expr, ""); err != nil {
			return matcher{}, fmt.Errorf("%w: glob %q: %v", ErrInvalidPattern, p.Expr, err)
		}
		return matcher{kind: PatternGlob, expr: p.Expr}, nil
	case PatternRegex:
		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return matcher{}, fmt.Errorf("%w: regex %q: %v", ErrInvalidPattern, p.Expr, err)
		}
		return matcher{kind: PatternRegex, expr: p.Expr, re: re}, nil
	default:
		return matcher{}, fmt.Errorf("%w: %q", ErrUnsupportedPattern, p.Kind)
	}
}

// Match reports whether the matcher accepts the given event type.
func (m matcher) Match(eventType string) bool {
	switch m.kind {
	case PatternExact:
		return m.expr == eventType
	case PatternGlob:
		ok, err := path.Match(m.expr, eventType)
		return err == nil && ok
	case PatternRegex:
		return m.re.MatchString(eventType)
	default:
		return false
	}
}
