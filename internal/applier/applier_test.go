package applier

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/tranquilize/internal/matcher"
	"github.com/bnema/tranquilize/internal/models"
)

const redditPage = `<!DOCTYPE html>
<html>
<head><title>reddit</title></head>
<body>
  <div class="subgrid-container">feed</div>
  <reddit-sidebar-nav>nav</reddit-sidebar-nav>
</body>
</html>`

var homeFeed = models.BlockRule{
	ID:             "home_feed",
	DisplayName:    "Hide Home Feeds",
	URLPatterns:    []string{`^reddit\.com$`},
	Selectors:      []string{".subgrid-container"},
	DefaultEnabled: true,
}

var sidebar = models.BlockRule{
	ID:             "sidebar",
	URLPatterns:    []string{".*"},
	Selectors:      []string{"reddit-sidebar-nav", "#navbar-menu-button"},
	DefaultEnabled: true,
}

func parse(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func render(t *testing.T, doc *goquery.Document) string {
	t.Helper()
	out, err := goquery.OuterHtml(doc.Selection)
	require.NoError(t, err)
	return out
}

func TestPlan(t *testing.T) {
	m := matcher.New(nil)
	settings := models.Settings{models.Key("reddit", "sidebar"): false}

	states := Plan(m, "reddit", []models.BlockRule{homeFeed, sidebar}, settings, "reddit.com")
	require.Len(t, states, 2)

	assert.Equal(t, models.Key("reddit", "home_feed"), states[0].Key)
	assert.True(t, states[0].Enabled, "missing key follows the rule default")
	assert.True(t, states[0].Matched)
	assert.True(t, states[0].Active())

	assert.False(t, states[1].Enabled)
	assert.True(t, states[1].Matched)
	assert.False(t, states[1].Active())
}

func TestStyleSheet(t *testing.T) {
	states := []RuleState{
		{Rule: homeFeed, Enabled: true, Matched: true},
		{Rule: sidebar, Enabled: true, Matched: true},
		{Rule: models.BlockRule{ID: "off", Selectors: []string{".x"}}, Enabled: false, Matched: true},
	}

	expected := ".subgrid-container { display: none !important; }\n" +
		"reddit-sidebar-nav, #navbar-menu-button { display: none !important; }"
	assert.Equal(t, expected, StyleSheet(states))
	assert.Empty(t, StyleSheet(nil))
}

func TestApplyRedditScenario(t *testing.T) {
	a := New(nil, nil)
	rules := []models.BlockRule{homeFeed}

	tests := []struct {
		name   string
		url    string
		hidden bool
	}{
		{name: "front page hides the feed", url: "https://www.reddit.com/", hidden: true},
		{name: "subreddit shows the feed", url: "https://www.reddit.com/r/funny", hidden: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, redditPage)
			states := a.Apply(doc, "reddit", rules, models.Settings{}, matcher.NormalizeURL(tt.url))

			require.Len(t, states, 1)
			assert.Equal(t, tt.hidden, states[0].Active())

			feed := doc.Find(".subgrid-container")
			mark, marked := feed.Attr(HiddenAttr)
			assert.Equal(t, tt.hidden, marked)

			style := doc.Find("head style[" + StyleAttr + "]")
			if tt.hidden {
				assert.Equal(t, "reddit.home_feed", mark)
				require.Equal(t, 1, style.Length())
				assert.Contains(t, style.Text(), ".subgrid-container { display: none !important; }")
			} else {
				assert.Equal(t, 0, style.Length())
			}
		})
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	a := New(nil, nil)
	doc := parse(t, redditPage)
	rules := []models.BlockRule{homeFeed, sidebar}

	a.Apply(doc, "reddit", rules, nil, "reddit.com")
	once := render(t, doc)

	for i := 0; i < 3; i++ {
		a.Apply(doc, "reddit", rules, nil, "reddit.com")
	}

	assert.Equal(t, once, render(t, doc))
	assert.Equal(t, 1, doc.Find("style["+StyleAttr+"]").Length())
}

func TestApplyShowsRulesThatBecameInactive(t *testing.T) {
	a := New(nil, nil)
	doc := parse(t, redditPage)
	rules := []models.BlockRule{homeFeed, sidebar}

	a.Apply(doc, "reddit", rules, nil, "reddit.com")
	require.Equal(t, 1, doc.Find("["+HiddenAttr+"]").Filter(".subgrid-container").Length())

	off := models.Settings{
		models.Key("reddit", "home_feed"): false,
		models.Key("reddit", "sidebar"):   false,
	}
	a.Apply(doc, "reddit", rules, off, "reddit.com")

	assert.Equal(t, 0, doc.Find("["+HiddenAttr+"]").Length())
	assert.Equal(t, 0, doc.Find("style["+StyleAttr+"]").Length())
}

func TestApplyKeepsOtherRulesMarks(t *testing.T) {
	a := New(nil, nil)
	doc := parse(t, `<html><head></head><body><div class="feed"></div></body></html>`)
	rules := []models.BlockRule{
		{ID: "one", URLPatterns: []string{".*"}, Selectors: []string{".feed"}, DefaultEnabled: true},
		{ID: "two", URLPatterns: []string{".*"}, Selectors: []string{"div"}, DefaultEnabled: true},
	}

	a.Apply(doc, "site", rules, nil, "site.com")
	mark, _ := doc.Find(".feed").Attr(HiddenAttr)
	assert.Equal(t, "site.one site.two", mark)

	a.Apply(doc, "site", rules, models.Settings{models.Key("site", "one"): false}, "site.com")
	mark, _ = doc.Find(".feed").Attr(HiddenAttr)
	assert.Equal(t, "site.two", mark)
}

func TestApplyToleratesMissingAndBadSelectors(t *testing.T) {
	a := New(nil, nil)
	doc := parse(t, redditPage)
	rules := []models.BlockRule{
		{ID: "ghost", URLPatterns: []string{".*"}, Selectors: []string{".does-not-exist"}, DefaultEnabled: true},
		{ID: "broken", URLPatterns: []string{".*"}, Selectors: []string{"div[["}, DefaultEnabled: true},
	}

	assert.NotPanics(t, func() {
		a.Apply(doc, "reddit", rules, nil, "reddit.com")
	})
	assert.Equal(t, 0, doc.Find("["+HiddenAttr+"]").Length())
}
