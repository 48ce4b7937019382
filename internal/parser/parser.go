package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/bnema/tranquilize/internal/models"
)

// Parser reads uBlock-style cosmetic lines for custom rules
type Parser struct {
	stats Stats
}

// Stats tracks parsing statistics
type Stats struct {
	Total       int
	Cosmetic    int
	Comments    int
	Unsupported int
	SkipReasons map[string]int // Detailed breakdown of skipped lines
}

// SkipReason constants
const (
	SkipNetwork           = "network filter"
	SkipException         = "network exception (@@)"
	SkipCosmeticException = "cosmetic-exception (#@#)"
	SkipScriptlet         = "scriptlet (##+js)"
	SkipHTMLFilter        = "html-filter (##^)"
	SkipProcedural        = "procedural (:has, :xpath, etc)"
	SkipEmptySelector     = "empty selector"
)

// New creates a new parser
func New() *Parser {
	return &Parser{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

// skip records a skipped line with reason
func (p *Parser) skip(reason, line string) models.Filter {
	p.stats.SkipReasons[reason]++
	return models.Filter{Type: models.FilterTypeUnsupported, Raw: line}
}

// Stats returns parsing statistics
func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse reads rule lines and returns the cosmetic filters
func (p *Parser) Parse(r io.Reader) ([]models.Filter, error) {
	var filters []models.Filter
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		filter := p.parseLine(line)
		p.stats.Total++

		switch filter.Type {
		case models.FilterTypeComment:
			p.stats.Comments++
			continue
		case models.FilterTypeUnsupported:
			p.stats.Unsupported++
			continue
		case models.FilterTypeCosmetic:
			p.stats.Cosmetic++
		}

		filters = append(filters, filter)
	}

	return filters, scanner.Err()
}

// ParseFiles parses every file matched by the glob patterns, in pattern order
func (p *Parser) ParseFiles(patterns []string) ([]models.Filter, error) {
	var filters []models.Filter
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, path := range matches {
			if seen[path] {
				continue
			}
			seen[path] = true

			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			parsed, err := p.Parse(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			filters = append(filters, parsed...)
		}
	}

	return filters, nil
}

// parseLine parses a single line
func (p *Parser) parseLine(line string) models.Filter {
	// Comments
	if strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") || (strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "##")) {
		return models.Filter{Type: models.FilterTypeComment, Raw: line}
	}

	// Scriptlet injection
	if strings.Contains(line, "##+js(") || strings.Contains(line, "#@#+js(") {
		return p.skip(SkipScriptlet, line)
	}

	// HTML filtering
	if strings.Contains(line, "##^") || strings.Contains(line, "#@#^") {
		return p.skip(SkipHTMLFilter, line)
	}

	if strings.Contains(line, "#@#") {
		return p.skip(SkipCosmeticException, line)
	}

	idx := strings.Index(line, "##")
	if idx == -1 {
		if strings.HasPrefix(line, "@@") {
			return p.skip(SkipException, line)
		}
		return p.skip(SkipNetwork, line)
	}

	// Procedural cosmetic filters cannot be expressed as a stylesheet
	if containsProcedural(line[idx:]) {
		return p.skip(SkipProcedural, line)
	}

	return p.parseCosmetic(line, idx)
}

// containsProcedural checks for procedural cosmetic filter syntax
func containsProcedural(selector string) bool {
	procedural := []string{
		":has-text(", ":xpath(", ":matches-css(",
		":matches-attr(", ":min-text-length(",
		":upward(", ":remove(", ":style(", ":-abp-",
	}
	for _, p := range procedural {
		if strings.Contains(selector, p) {
			return true
		}
	}
	return false
}

// parseCosmetic parses a cosmetic (CSS) filter
func (p *Parser) parseCosmetic(line string, sepIdx int) models.Filter {
	var domains []string
	if sepIdx > 0 {
		domains = parseDomainList(line[:sepIdx])
	}

	selector := strings.TrimSpace(line[sepIdx+2:])
	if selector == "" {
		return p.skip(SkipEmptySelector, line)
	}

	return models.Filter{
		Type:     models.FilterTypeCosmetic,
		Raw:      line,
		Selector: selector,
		Domains:  domains,
	}
}

// parseDomainList parses comma-separated domain list
func parseDomainList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	domains := make([]string, 0, len(parts))
	for _, d := range parts {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}
