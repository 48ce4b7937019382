// Package applier decides which rules are active on a page and applies them
// to an HTML document.
package applier

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/bnema/tranquilize/internal/logging"
	"github.com/bnema/tranquilize/internal/matcher"
	"github.com/bnema/tranquilize/internal/models"
)

// Attributes written into the document
const (
	StyleAttr  = "data-tranquilize"
	HiddenAttr = "data-tranquilize-hidden"
)

// RuleState is a rule evaluated against one page
type RuleState struct {
	Key     models.SettingKey
	Rule    models.BlockRule
	Enabled bool
	Matched bool
}

// Active reports whether the rule's selectors must be hidden
func (s RuleState) Active() bool {
	return s.Enabled && s.Matched
}

// Plan evaluates a site's rules in order
func Plan(m *matcher.Matcher, site string, rules []models.BlockRule, settings models.Settings, canonical string) []RuleState {
	states := make([]RuleState, 0, len(rules))
	for _, match := range m.MatchRules(rules, canonical) {
		states = append(states, RuleState{
			Key:     models.Key(site, match.Rule.ID),
			Rule:    match.Rule,
			Enabled: settings.Enabled(site, match.Rule),
			Matched: match.Matched,
		})
	}
	return states
}

// StyleSheet renders one display:none line per active rule
func StyleSheet(states []RuleState) string {
	var lines []string
	for _, s := range states {
		if !s.Active() || len(s.Rule.Selectors) == 0 {
			continue
		}
		lines = append(lines, strings.Join(s.Rule.Selectors, ", ")+" { display: none !important; }")
	}
	return strings.Join(lines, "\n")
}

// Applier writes rule states into goquery documents
type Applier struct {
	matcher *matcher.Matcher
	log     *zap.Logger
}

// New creates an applier
func New(m *matcher.Matcher, log *zap.Logger) *Applier {
	log = logging.OrNop(log)
	if m == nil {
		m = matcher.New(log)
	}
	return &Applier{matcher: m, log: log}
}

// Matcher returns the matcher used to plan rules
func (a *Applier) Matcher() *matcher.Matcher { return a.matcher }

// Apply plans the site's rules for the canonical URL and writes them into doc
func (a *Applier) Apply(doc *goquery.Document, site string, rules []models.BlockRule, settings models.Settings, canonical string) []RuleState {
	states := Plan(a.matcher, site, rules, settings, canonical)
	a.ApplyStates(doc, states)
	return states
}

// ApplyStates replaces the injected stylesheet and the hidden markers. Running
// it again with the same states leaves the document unchanged.
func (a *Applier) ApplyStates(doc *goquery.Document, states []RuleState) {
	doc.Find("style[" + StyleAttr + "]").Remove()

	active := 0
	for _, s := range states {
		key := s.Key.String()
		for _, raw := range s.Rule.Selectors {
			sel, err := cascadia.Compile(raw)
			if err != nil {
				a.log.Warn("skipping unparsable selector",
					zap.String("rule", key),
					zap.String("selector", raw),
					zap.Error(err))
				continue
			}
			doc.FindMatcher(sel).Each(func(_ int, el *goquery.Selection) {
				if s.Active() {
					addMark(el, key)
				} else {
					removeMark(el, key)
				}
			})
		}
		if s.Active() {
			active++
		}
		a.log.Debug("rule evaluated",
			zap.String("rule", key),
			zap.Bool("enabled", s.Enabled),
			zap.Bool("matched", s.Matched))
	}

	css := StyleSheet(states)
	if css == "" {
		a.log.Debug("no rules matched, no css injected")
		return
	}

	head := doc.Find("head").First()
	if head.Length() == 0 {
		head = doc.Find("html").First()
	}
	head.AppendNodes(styleNode(css))
	a.log.Info("applied rules", zap.Int("active", active))
}

func styleNode(css string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
		Attr:     []html.Attribute{{Key: StyleAttr, Val: "true"}},
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	return n
}

func addMark(el *goquery.Selection, key string) {
	keys := markKeys(el)
	for _, k := range keys {
		if k == key {
			return
		}
	}
	setMarks(el, append(keys, key))
}

func removeMark(el *goquery.Selection, key string) {
	keys := markKeys(el)
	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	setMarks(el, out)
}

func markKeys(el *goquery.Selection) []string {
	v, _ := el.Attr(HiddenAttr)
	return strings.Fields(v)
}

func setMarks(el *goquery.Selection, keys []string) {
	if len(keys) == 0 {
		el.RemoveAttr(HiddenAttr)
		return
	}
	sort.Strings(keys)
	el.SetAttr(HiddenAttr, strings.Join(keys, " "))
}
