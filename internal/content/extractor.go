package content

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	"github.com/arcadeforge/arcadeforge/internal/errors"
	"github.com/arcadeforge/arcadeforge/internal/logging"
	"github.com/arcadeforge/arcadeforge/internal/validation"
)

// defaultEmbedURL is the iframe placeholder used when a game carries no
// embed descriptor or an unsafe one.
const defaultEmbedURL = "about:blank"

// gameMeta mirrors the game.yaml schema as authored.
type gameMeta struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Embed       string   `yaml:"embed"`
	Hero        string   `yaml:"hero"`
	Tags        []string `yaml:"tags"`
	Rating      *Rating  `yaml:"rating"`
}

// Extractor reads game content directories under a site's content root.
// It never writes; extraction failures are reported per game so one bad
// record cannot abort the site build.
type Extractor struct {
	contentRoot string
	markdown    goldmark.Markdown
	log         logging.Logger
}

// NewExtractor creates an extractor rooted at a site's content directory.
func NewExtractor(contentRoot string, log logging.Logger) *Extractor {
	return &Extractor{
		contentRoot: contentRoot,
		// goldmark's default renderer omits raw HTML blocks, which keeps
		// author-supplied markdown inside the same markup-safety contract
		// as the metadata fields.
		markdown: goldmark.New(),
		log:      log.WithComponent("extractor"),
	}
}

// ListGames enumerates game ids (subdirectories of games/ carrying a
// game.yaml), sorted for deterministic scheduling.
func (e *Extractor) ListGames() ([]string, error) {
	gamesDir := filepath.Join(e.contentRoot, "games")

	entries, err := os.ReadDir(gamesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewIOError(errors.ErrCodeInvalidGameContent, "reading games directory", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(gamesDir, entry.Name(), "game.yaml")); err == nil {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)

	return ids, nil
}

// Extract produces the sanitized GameRecord for one game id.
func (e *Extractor) Extract(ctx context.Context, id string) (*GameRecord, error) {
	safeID, err := validation.SanitizePathComponent(id)
	if err != nil {
		return nil, errors.ErrInvalidGameContent(id, "id", err)
	}

	gameDir := filepath.Join(e.contentRoot, "games", safeID)

	rawMeta, err := os.ReadFile(filepath.Join(gameDir, "game.yaml"))
	if err != nil {
		return nil, errors.ErrInvalidGameContent(safeID, "game.yaml", err)
	}

	// body.md is optional long-form content.
	rawBody, err := os.ReadFile(filepath.Join(gameDir, "body.md"))
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.ErrInvalidGameContent(safeID, "body.md", err)
	}

	return e.parse(ctx, safeID, rawMeta, rawBody)
}

// parse builds a record from raw bytes. Separated from Extract so the
// sanitization path stays testable without a filesystem.
func (e *Extractor) parse(ctx context.Context, id string, rawMeta, rawBody []byte) (*GameRecord, error) {
	var meta gameMeta
	if err := yaml.Unmarshal(rawMeta, &meta); err != nil {
		return nil, errors.ErrInvalidGameContent(id, "game.yaml", err)
	}

	// Required fields fail the whole record.
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		return nil, errors.ErrInvalidGameContent(id, "title", nil)
	}

	record := &GameRecord{
		ID:          id,
		Title:       validation.SanitizeHTMLContent(title),
		Description: validation.SanitizeHTMLContent(strings.TrimSpace(meta.Description)),
	}

	// Optional cosmetic fields degrade to safe defaults on rejection.
	record.EmbedURL = defaultEmbedURL
	if meta.Embed != "" {
		if embed, err := validation.ValidateURLStrict(meta.Embed); err != nil {
			e.log.Warn(ctx, err, "dropping unsafe embed URL", "game", id)
		} else {
			record.EmbedURL = embed
		}
	}

	if meta.Hero != "" {
		if hero, err := validation.ValidateImagePath(meta.Hero, e.contentRoot); err != nil {
			e.log.Warn(ctx, err, "dropping invalid hero image", "game", id)
		} else if _, statErr := os.Stat(hero); statErr != nil {
			e.log.Warn(ctx, statErr, "dropping missing hero image", "game", id)
		} else {
			record.HeroImage = hero
		}
	}

	for _, tag := range meta.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		record.Tags = append(record.Tags, validation.SanitizeHTMLContent(tag))
	}
	// The fingerprint frames tags sorted, so the record must carry the
	// same order or a reorder-only edit would hit the cache while a fresh
	// render produced different bytes.
	sort.Strings(record.Tags)

	if len(rawBody) > 0 {
		var buf bytes.Buffer
		if err := e.markdown.Convert(rawBody, &buf); err != nil {
			e.log.Warn(ctx, err, "dropping unrenderable body", "game", id)
		} else {
			record.BodyHTML = buf.String()
		}
	}

	if meta.Rating != nil && meta.Rating.Value >= 1 && meta.Rating.Value <= 5 && meta.Rating.Count >= 0 {
		record.Rating = *meta.Rating
	} else {
		record.Rating = DeriveRating(id)
	}

	return record, nil
}
