package matcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"

	"github.com/bnema/tranquilize/internal/logging"
	"github.com/bnema/tranquilize/internal/models"
)

// matchTimeout bounds a single pattern evaluation, backtracking patterns
// from a remote document must not hang the caller
const matchTimeout = 100 * time.Millisecond

// PatternError reports a url pattern that does not compile
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid url pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// Match is the outcome of testing one rule against a canonical URL
type Match struct {
	Rule    models.BlockRule
	Matched bool
}

// Matcher tests rules against canonical URLs. Patterns are ECMAScript
// regular expressions, compiled once.
type Matcher struct {
	log   *zap.Logger
	mu    sync.RWMutex
	cache map[string]compiled
}

type compiled struct {
	re  *regexp2.Regexp
	err error
}

// New creates a matcher
func New(log *zap.Logger) *Matcher {
	log = logging.OrNop(log)
	return &Matcher{log: log, cache: make(map[string]compiled)}
}

// MatchRules tests every rule, preserving order
func (m *Matcher) MatchRules(rules []models.BlockRule, canonical string) []Match {
	out := make([]Match, len(rules))
	for i, r := range rules {
		out[i] = Match{Rule: r, Matched: m.Matches(r, canonical)}
	}
	return out
}

// Matches reports whether any of the rule's url patterns matches. A rule
// without patterns never matches; use ".*" to match every page.
func (m *Matcher) Matches(rule models.BlockRule, canonical string) bool {
	for _, p := range rule.URLPatterns {
		if m.MatchPattern(p, canonical) {
			return true
		}
	}
	return false
}

// MatchPattern tests a single pattern. Invalid patterns never match.
func (m *Matcher) MatchPattern(pattern, canonical string) bool {
	re, err := m.compile(pattern)
	if err != nil {
		return false
	}

	ok, err := re.MatchString(canonical)
	if err != nil {
		m.log.Warn("url pattern evaluation failed",
			zap.String("pattern", pattern),
			zap.String("url", canonical),
			zap.Error(err))
		return false
	}
	return ok
}

// Validate compiles a pattern, returning a *PatternError when it is invalid
func (m *Matcher) Validate(pattern string) error {
	_, err := m.compile(pattern)
	return err
}

func (m *Matcher) compile(pattern string) (*regexp2.Regexp, error) {
	m.mu.RLock()
	c, ok := m.cache[pattern]
	m.mu.RUnlock()
	if ok {
		return c.re, c.err
	}

	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		c = compiled{err: &PatternError{Pattern: pattern, Err: err}}
		// Logged once, later lookups hit the cache
		m.log.Error("invalid url pattern, skipping it", zap.String("pattern", pattern), zap.Error(err))
	} else {
		re.MatchTimeout = matchTimeout
		c = compiled{re: re}
	}

	m.mu.Lock()
	m.cache[pattern] = c
	m.mu.Unlock()

	return c.re, c.err
}
