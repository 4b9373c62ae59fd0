// Package rewrite maps inbound request paths onto backend origins.
package rewrite

import (
	"fmt"
	"net/url"
	"strings"
)

// Rule forwards paths under MatchPrefix to DestinationOrigin. The
// prefix is a literal string test, not a pattern, and the whole
// original path plus query string is preserved when forwarding.
type Rule struct {
	MatchPrefix       string
	DestinationOrigin string
}

// Router holds an ordered rule list. First match wins; no match means
// the request is served locally. Stateless after construction, safe
// for unlimited concurrent use.
type Router struct {
	rules []Rule
}

// NewRouter validates the rules and returns a Router. A malformed rule
// is a configuration-time error: requests never see it.
func NewRouter(rules []Rule) (*Router, error) {
	normalized := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if !strings.HasPrefix(r.MatchPrefix, "/") {
			return nil, fmt.Errorf("rule %d: match prefix must start with '/'; got %q", i, r.MatchPrefix)
		}
		origin, err := parseOrigin(r.DestinationOrigin)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		normalized = append(normalized, Rule{
			MatchPrefix:       r.MatchPrefix,
			DestinationOrigin: origin,
		})
	}
	return &Router{rules: normalized}, nil
}

// Rules returns a copy of the active rule list.
func (r *Router) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Match returns the first rule whose prefix matches the path.
func (r *Router) Match(path string) (Rule, bool) {
	for _, rule := range r.rules {
		if strings.HasPrefix(path, rule.MatchPrefix) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Target builds the forwarding URL: destination origin plus the
// original path and raw query, verbatim.
func (r *Router) Target(rule Rule, path, rawQuery string) string {
	target := rule.DestinationOrigin + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

// parseOrigin checks that the destination is a bare http(s) origin and
// strips any trailing slash so Target can concatenate paths directly.
func parseOrigin(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("destination origin %q is not a valid URL: %v", origin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("destination origin %q must use http or https", origin)
	}
	if u.Host == "" {
		return "", fmt.Errorf("destination origin %q has no host", origin)
	}
	if u.RawQuery != "" || u.Fragment != "" || (u.Path != "" && u.Path != "/") {
		return "", fmt.Errorf("destination origin %q must not carry a path, query or fragment", origin)
	}
	return u.Scheme + "://" + u.Host, nil
}
