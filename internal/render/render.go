// Package render turns page contexts into HTML bytes. Rendering is a pure
// function behind a narrow interface: the build pipeline neither knows nor
// cares whether pages come from the embedded defaults or a site's own
// template directory.
package render

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"

	"github.com/arcadeforge/arcadeforge/internal/content"
	"github.com/arcadeforge/arcadeforge/internal/errors"
)

// Template ids the orchestrator renders.
const (
	TemplateGame     = "game"
	TemplateIndex    = "index"
	TemplateNotFound = "404"
	TemplateOffline  = "offline"
)

// Renderer produces page bytes for a template id and context. Must be
// safe for concurrent use.
type Renderer interface {
	Render(templateID string, data any) ([]byte, error)
}

// SiteContext is the site-level data every page sees.
type SiteContext struct {
	Name        string
	Title       template.HTML
	Description template.HTML
	BaseURL     string
}

// GameContext is one game's data as the templates consume it. Text fields
// arrive pre-escaped from the extractor, so they carry template.HTML to
// keep html/template from escaping them a second time. EmbedURL is
// scheme-validated upstream and carries template.URL; html/template would
// otherwise reject the about:blank placeholder as an unknown scheme.
type GameContext struct {
	ID          string
	URL         string
	Title       template.HTML
	Description template.HTML
	EmbedURL    template.URL
	HeroImage   string
	Tags        []template.HTML
	BodyHTML    template.HTML
	RatingValue float64
	RatingCount int
}

// GamePage is the context for TemplateGame.
type GamePage struct {
	Site      SiteContext
	Game      GameContext
	Related   []GameContext
	Canonical string
}

// IndexPage is the context for TemplateIndex.
type IndexPage struct {
	Site      SiteContext
	Games     []GameContext
	Canonical string
}

// ErrorPage is the context for TemplateNotFound and TemplateOffline.
type ErrorPage struct {
	Site SiteContext
}

// NewGameContext adapts a sanitized record for the templates. pageURL is
// the absolute URL of the game's page; imageSrc the hero rendition path
// relative to the site root, or empty.
func NewGameContext(record *content.GameRecord, pageURL, imageSrc string) GameContext {
	tags := make([]template.HTML, 0, len(record.Tags))
	for _, tag := range record.Tags {
		tags = append(tags, template.HTML(tag))
	}

	return GameContext{
		ID:          record.ID,
		URL:         pageURL,
		Title:       template.HTML(record.Title),
		Description: template.HTML(record.Description),
		EmbedURL:    template.URL(record.EmbedURL),
		HeroImage:   imageSrc,
		Tags:        tags,
		BodyHTML:    template.HTML(record.BodyHTML),
		RatingValue: record.Rating.Value,
		RatingCount: record.Rating.Count,
	}
}

// HTMLRenderer renders with html/template. Embedded defaults cover every
// template id; files named <id>.html.tmpl in a site's template directory
// override them.
type HTMLRenderer struct {
	templates *template.Template
}

// NewHTMLRenderer builds a renderer from the defaults plus any overrides
// found in templateDir. An empty templateDir uses the defaults alone.
func NewHTMLRenderer(templateDir string) (*HTMLRenderer, error) {
	root := template.New("arcadeforge")
	for id, text := range defaultTemplates {
		if _, err := root.New(id).Parse(text); err != nil {
			return nil, errors.NewInternalError("parsing built-in template "+id, err)
		}
	}

	if templateDir != "" {
		matches, err := filepath.Glob(filepath.Join(templateDir, "*.html.tmpl"))
		if err != nil {
			return nil, errors.NewIOError(errors.ErrCodeRenderFailure, "scanning template directory", err)
		}
		for _, path := range matches {
			id := filepath.Base(path)
			id = id[:len(id)-len(".html.tmpl")]

			text, err := os.ReadFile(path)
			if err != nil {
				return nil, errors.NewIOError(errors.ErrCodeRenderFailure, "reading template "+path, err)
			}
			if _, err := root.New(id).Parse(string(text)); err != nil {
				return nil, errors.NewBuildError(errors.ErrCodeRenderFailure, "parsing template "+path, err)
			}
		}
	}

	return &HTMLRenderer{templates: root}, nil
}

// Render executes the named template. html/template is safe for
// concurrent execution after parsing.
func (r *HTMLRenderer) Render(templateID string, data any) ([]byte, error) {
	tmpl := r.templates.Lookup(templateID)
	if tmpl == nil {
		return nil, errors.NewBuildError(errors.ErrCodeRenderFailure, "unknown template "+templateID, nil)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.NewBuildError(errors.ErrCodeRenderFailure, "executing template "+templateID, err)
	}

	return buf.Bytes(), nil
}
