package converter

import (
	"fmt"
	"strings"

	"github.com/bnema/tranquilize/internal/models"
)

// MaxRulesPerFile is Safari/WebKit's limit per content blocker
const MaxRulesPerFile = 50000

// Splitter splits rules into chunks respecting the 50k limit
type Splitter struct {
	maxRules int
}

// NewSplitter creates a splitter with the given max rules per file
func NewSplitter(maxRules int) *Splitter {
	if maxRules <= 0 {
		maxRules = MaxRulesPerFile
	}
	return &Splitter{maxRules: maxRules}
}

// Part is one output file worth of rules
type Part struct {
	Name  string
	Rules []models.WebKitRule
}

// Split divides rules into parts named baseName, or baseName-partN when
// more than one file is needed
func (s *Splitter) Split(rules []models.WebKitRule, baseName string) []Part {
	if len(rules) <= s.maxRules {
		return []Part{{Name: baseName, Rules: rules}}
	}

	numParts := (len(rules) + s.maxRules - 1) / s.maxRules
	parts := make([]Part, 0, numParts)

	for i := 0; i < numParts; i++ {
		start := i * s.maxRules
		end := min(start+s.maxRules, len(rules))
		parts = append(parts, Part{
			Name:  fmt.Sprintf("%s-part%d", baseName, i+1),
			Rules: rules[start:end],
		})
	}

	return parts
}

// Deduplicate drops rules whose trigger and action repeat an earlier one
func Deduplicate(rules []models.WebKitRule) []models.WebKitRule {
	seen := make(map[string]bool)
	result := make([]models.WebKitRule, 0, len(rules))

	for _, r := range rules {
		key := fmt.Sprintf("%s|%s|%s|%s",
			r.Trigger.URLFilter,
			strings.Join(r.Trigger.IfDomain, ","),
			r.Action.Type,
			r.Action.Selector,
		)

		if !seen[key] {
			seen[key] = true
			result = append(result, r)
		}
	}

	return result
}
