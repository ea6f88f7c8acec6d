// Package classify assigns normalized fee categories to raw fee descriptions
// using a prioritized, process-wide rule set.
package classify

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// MatchType is the closed set of rule matching kinds.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
	MatchRegex    MatchType = "regex"
)

// ValidMatchType reports whether s is one of the three literal match kinds.
func ValidMatchType(s string) bool {
	switch MatchType(s) {
	case MatchExact, MatchContains, MatchRegex:
		return true
	}
	return false
}

// Rule maps a fee-description pattern to a normalized category. Rules are
// shared across all uploads classified after their creation.
type Rule struct {
	ID        int64     `json:"id"`
	Pattern   string    `json:"pattern"`
	MatchType MatchType `json:"match_type"`
	Category  string    `json:"category"`
	Priority  int       `json:"priority"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp // non-nil for regex rules only
}

// RuleSet is an immutable snapshot of the enabled rules in evaluation order:
// descending priority, ties broken by ascending rule id so equal-priority
// rules keep creation order. Snapshot once per batch pass; classifying
// against a fixed snapshot is deterministic and idempotent.
type RuleSet struct {
	rules []compiledRule
}

// NewRuleSet compiles a snapshot. Disabled rules and rules with an empty
// pattern are dropped. Regex rules that fail to compile never match; they are
// returned so the caller can log them once.
func NewRuleSet(rules []Rule) (*RuleSet, []Rule) {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	set := &RuleSet{rules: make([]compiledRule, 0, len(ordered))}
	var skipped []Rule
	for _, r := range ordered {
		if !r.Enabled || r.Pattern == "" {
			continue
		}
		cr := compiledRule{rule: r}
		if r.MatchType == MatchRegex {
			re, err := regexp.Compile("(?i)" + r.Pattern)
			if err != nil {
				skipped = append(skipped, r)
				continue
			}
			cr.re = re
		}
		set.rules = append(set.rules, cr)
	}
	return set, skipped
}

// Len reports how many rules survived compilation.
func (s *RuleSet) Len() int { return len(s.rules) }

// Classify returns the category of the first matching rule, or nil when no
// rule matches ("unclassified").
func (s *RuleSet) Classify(feeText string) *string {
	for _, cr := range s.rules {
		if cr.matches(feeText) {
			category := cr.rule.Category
			return &category
		}
	}
	return nil
}

func (cr compiledRule) matches(feeText string) bool {
	switch cr.rule.MatchType {
	case MatchExact:
		return strings.EqualFold(cr.rule.Pattern, feeText)
	case MatchContains:
		return strings.Contains(strings.ToLower(feeText), strings.ToLower(cr.rule.Pattern))
	case MatchRegex:
		// Search, not full match, against the raw fee text.
		return cr.re.MatchString(feeText)
	}
	return false
}
