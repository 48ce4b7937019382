package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/tranquilize/internal/models"
)

const customList = `! Title: my tweaks
[Adblock Plus 2.0]
# plain comment
reddit.com##.promotedlink
youtube.com,~music.youtube.com##ytd-reel-shelf-renderer
##.cookie-banner
||ads.example.com^
@@||example.com^$document
reddit.com#@#.sidebar
youtube.com##+js(set-constant, foo, true)
example.com##^script:has-text(ads)
reddit.com##div:has-text(Promoted)
reddit.com##
`

func TestParse(t *testing.T) {
	p := New()
	filters, err := p.Parse(strings.NewReader(customList))
	require.NoError(t, err)

	require.Len(t, filters, 3)
	assert.Equal(t, models.Filter{
		Type:     models.FilterTypeCosmetic,
		Raw:      "reddit.com##.promotedlink",
		Selector: ".promotedlink",
		Domains:  []string{"reddit.com"},
	}, filters[0])
	assert.Equal(t, []string{"youtube.com"}, filters[1].IncludedDomains())
	assert.Equal(t, []string{"music.youtube.com"}, filters[1].ExcludedDomains())
	assert.Nil(t, filters[2].Domains)
	assert.Equal(t, ".cookie-banner", filters[2].Selector)

	stats := p.Stats()
	assert.Equal(t, 13, stats.Total)
	assert.Equal(t, 3, stats.Comments)
	assert.Equal(t, 3, stats.Cosmetic)
	assert.Equal(t, 7, stats.Unsupported)
	assert.Equal(t, map[string]int{
		SkipNetwork:           1,
		SkipException:         1,
		SkipCosmeticException: 1,
		SkipScriptlet:         1,
		SkipHTMLFilter:        1,
		SkipProcedural:        1,
		SkipEmptySelector:     1,
	}, stats.SkipReasons)
}

func TestParseFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sites"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.txt"), []byte("##.banner\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sites", "reddit.txt"), []byte("reddit.com##.promotedlink\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("reddit.com##.ignored\n"), 0o644))

	p := New()
	filters, err := p.ParseFiles([]string{
		filepath.Join(dir, "**", "*.txt"),
		filepath.Join(dir, "base.txt"),
	})
	require.NoError(t, err)

	var selectors []string
	for _, f := range filters {
		selectors = append(selectors, f.Selector)
	}
	assert.ElementsMatch(t, []string{".banner", ".promotedlink"}, selectors)
}

func TestParseFilesNoMatches(t *testing.T) {
	filters, err := New().ParseFiles([]string{filepath.Join(t.TempDir(), "*.txt")})
	require.NoError(t, err)
	assert.Empty(t, filters)
}
