package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadeforge/arcadeforge/internal/content"
)

func testSite() SiteContext {
	return SiteContext{
		Name:        "arcade",
		Title:       "Arcade Classics",
		Description: "Free browser games",
		BaseURL:     "https://arcade.example.com",
	}
}

func testGamePage() GamePage {
	record := &content.GameRecord{
		ID:          "space-blaster",
		Title:       "Space Blaster",
		Description: "Blast through space",
		EmbedURL:    "https://play.example.com/space-blaster",
		Tags:        []string{"arcade"},
		BodyHTML:    "<p>A long story.</p>",
		Rating:      content.Rating{Value: 4.5, Count: 1200},
	}
	return GamePage{
		Site:      testSite(),
		Game:      NewGameContext(record, "/games/space-blaster.html", "/assets/images/abc-hero.png"),
		Canonical: "https://arcade.example.com/games/space-blaster.html",
	}
}

func TestRenderGamePage(t *testing.T) {
	r, err := NewHTMLRenderer("")
	require.NoError(t, err)

	page, err := r.Render(TemplateGame, testGamePage())
	require.NoError(t, err)
	html := string(page)

	assert.Contains(t, html, "<title>Space Blaster - Arcade Classics</title>")
	assert.Contains(t, html, `<link rel="canonical" href="https://arcade.example.com/games/space-blaster.html">`)
	assert.Contains(t, html, `<iframe src="https://play.example.com/space-blaster"`)
	assert.Contains(t, html, `<img src="/assets/images/abc-hero.png" alt="Space Blaster">`)
	assert.Contains(t, html, "<p>A long story.</p>")
	assert.Contains(t, html, `<span class="value">4.5</span>`)
	assert.Contains(t, html, "1200 ratings")
}

func TestRenderGamePage_PreEscapedFieldsNotDoubleEscaped(t *testing.T) {
	r, err := NewHTMLRenderer("")
	require.NoError(t, err)

	record := &content.GameRecord{
		ID:       "xss",
		Title:    "&lt;script&gt;",
		EmbedURL: "about:blank",
	}
	page := GamePage{
		Site:      testSite(),
		Game:      NewGameContext(record, "/games/xss.html", ""),
		Canonical: "https://arcade.example.com/games/xss.html",
	}

	out, err := r.Render(TemplateGame, page)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "&amp;lt;script")
	assert.NotContains(t, html, "<script>")
}

func TestRenderGamePage_PlaceholderEmbedSurvivesURLContext(t *testing.T) {
	r, err := NewHTMLRenderer("")
	require.NoError(t, err)

	record := &content.GameRecord{
		ID:       "no-embed",
		Title:    "No Embed",
		EmbedURL: "about:blank",
	}
	page := GamePage{
		Site:      testSite(),
		Game:      NewGameContext(record, "/games/no-embed.html", ""),
		Canonical: "https://arcade.example.com/games/no-embed.html",
	}

	out, err := r.Render(TemplateGame, page)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, `<iframe src="about:blank"`)
	assert.NotContains(t, html, "ZgotmplZ")
}

func TestRenderGamePage_RelatedWidget(t *testing.T) {
	r, err := NewHTMLRenderer("")
	require.NoError(t, err)

	page := testGamePage()
	page.Related = []GameContext{
		NewGameContext(&content.GameRecord{ID: "pong", Title: "Pong"}, "/games/pong.html", ""),
	}

	out, err := r.Render(TemplateGame, page)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<a href="/games/pong.html">Pong</a>`)
}

func TestRenderIndexPage(t *testing.T) {
	r, err := NewHTMLRenderer("")
	require.NoError(t, err)

	page := IndexPage{
		Site:      testSite(),
		Canonical: "https://arcade.example.com/",
		Games: []GameContext{
			NewGameContext(&content.GameRecord{ID: "pong", Title: "Pong"}, "/games/pong.html", ""),
		},
	}

	out, err := r.Render(TemplateIndex, page)
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, "<title>Arcade Classics</title>")
	assert.Contains(t, html, `<a href="/games/pong.html">Pong</a>`)
}

func TestRenderErrorPages(t *testing.T) {
	r, err := NewHTMLRenderer("")
	require.NoError(t, err)

	for _, id := range []string{TemplateNotFound, TemplateOffline} {
		out, err := r.Render(id, ErrorPage{Site: testSite()})
		require.NoError(t, err, "template %s", id)
		assert.Contains(t, string(out), "Arcade Classics")
		assert.Contains(t, string(out), `<meta name="robots" content="noindex">`)
	}
}

func TestRender_Deterministic(t *testing.T) {
	r, err := NewHTMLRenderer("")
	require.NoError(t, err)

	first, err := r.Render(TemplateGame, testGamePage())
	require.NoError(t, err)
	second, err := r.Render(TemplateGame, testGamePage())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRender_UnknownTemplate(t *testing.T) {
	r, err := NewHTMLRenderer("")
	require.NoError(t, err)

	_, err = r.Render("nope", nil)
	assert.Error(t, err)
}

func TestNewHTMLRenderer_SiteOverrides(t *testing.T) {
	dir := t.TempDir()
	override := `custom {{.Site.Name}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html.tmpl"), []byte(override), 0o644))

	r, err := NewHTMLRenderer(dir)
	require.NoError(t, err)

	out, err := r.Render(TemplateIndex, IndexPage{Site: testSite()})
	require.NoError(t, err)
	assert.Equal(t, "custom arcade", strings.TrimSpace(string(out)))

	// Non-overridden templates still use the defaults.
	out, err = r.Render(TemplateGame, testGamePage())
	require.NoError(t, err)
	assert.Contains(t, string(out), "<title>Space Blaster - Arcade Classics</title>")
}

func TestNewHTMLRenderer_BadOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game.html.tmpl"), []byte("{{.Broken"), 0o644))

	_, err := NewHTMLRenderer(dir)
	assert.Error(t, err)
}
