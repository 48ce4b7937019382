package models

// FilterType represents the type of a custom rule line
type FilterType int

const (
	FilterTypeComment FilterType = iota
	FilterTypeCosmetic
	FilterTypeUnsupported // network filters, exceptions, scriptlets, procedural
)

// Filter represents a parsed cosmetic line such as "reddit.com##.subgrid-container"
type Filter struct {
	Type     FilterType
	Raw      string   // Original line
	Selector string   // CSS selector to hide
	Domains  []string // Domains this filter applies to, "~" prefix excludes
}

// IncludedDomains returns the domains without exclusions
func (f Filter) IncludedDomains() []string {
	var out []string
	for _, d := range f.Domains {
		if len(d) > 0 && d[0] != '~' {
			out = append(out, d)
		}
	}
	return out
}

// ExcludedDomains returns "~" domains without their prefix
func (f Filter) ExcludedDomains() []string {
	var out []string
	for _, d := range f.Domains {
		if len(d) > 1 && d[0] == '~' {
			out = append(out, d[1:])
		}
	}
	return out
}
