package site

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/arcadeforge/arcadeforge/internal/build"
	"github.com/arcadeforge/arcadeforge/internal/config"
	"github.com/arcadeforge/arcadeforge/internal/content"
	"github.com/arcadeforge/arcadeforge/internal/errors"
	"github.com/arcadeforge/arcadeforge/internal/logging"
	"github.com/arcadeforge/arcadeforge/internal/optimize"
	"github.com/arcadeforge/arcadeforge/internal/registry"
	"github.com/arcadeforge/arcadeforge/internal/render"
	"github.com/arcadeforge/arcadeforge/internal/validation"
)

const (
	cacheFileName = ".buildcache.json"
	relatedGames  = 4
)

// Builder runs one site through the build phases. A Builder is
// single-use; Run may be called once.
type Builder struct {
	global *config.Config
	site   *config.SiteConfig
	log    logging.Logger

	report    *Report
	renderer  render.Renderer
	extractor *content.Extractor
	registry  *registry.GameRegistry
	cache     *build.BuildCache
	optimizer *optimize.Optimizer

	// heroRel is populated during Plan and pruned by the image wave
	// before any page renders; pagesBuilt fills during the page wave.
	heroRel    map[string]string // game id -> hero rendition, output-relative
	pagesBuilt map[string]bool   // game id -> page published (built or hit)
}

// NewBuilder creates a builder for one site.
func NewBuilder(global *config.Config, site *config.SiteConfig, log logging.Logger) *Builder {
	return &Builder{
		global:     global,
		site:       site,
		log:        log.WithComponent("site").With("site", site.Name),
		registry:   registry.NewGameRegistry(),
		heroRel:    make(map[string]string),
		pagesBuilt: make(map[string]bool),
	}
}

// Run executes the full phase sequence. The returned report is always
// non-nil; the error is non-nil when the site failed Init or ended over
// the failure threshold.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	b.report = NewReport(b.site.Name)

	events := b.registry.Watch()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for event := range events {
			b.log.Debug(ctx, "registry event", "type", event.Type.String(), "game", event.Game.ID)
		}
	}()
	defer func() {
		b.registry.UnWatch(events)
		<-drained
	}()

	if err := b.init(); err != nil {
		b.report.Finish(PhaseFailed)
		return b.report, err
	}

	b.report.Phase = PhaseLoad
	if err := b.cache.Load(ctx); err != nil {
		// Unreadable cache degrades to cold, it never blocks the build.
		b.log.Warn(ctx, err, "build cache unavailable, building cold")
	}

	b.report.Phase = PhaseExtract
	if err := b.extract(ctx); err != nil {
		b.report.Finish(PhaseFailed)
		return b.report, err
	}

	b.report.Phase = PhasePlan
	units := b.plan(ctx)

	b.report.Phase = PhaseExecute
	b.execute(ctx, units)

	b.report.Phase = PhaseFinalize
	if err := b.finalize(ctx); err != nil {
		b.report.Finish(PhaseFailed)
		return b.report, err
	}

	threshold := b.global.Build.FailureThreshold
	if threshold > 0 && b.report.FailureRate() > threshold {
		b.report.Finish(PhaseFailed)
		return b.report, errors.NewBuildError(errors.ErrCodeRenderFailure,
			fmt.Sprintf("failure rate %.2f exceeds threshold %.2f", b.report.FailureRate(), threshold), nil).
			WithSite(b.site.Name)
	}

	b.report.Finish(PhaseDone)
	return b.report, nil
}

func (b *Builder) init() error {
	if err := b.site.Validate(b.global.OutputRoot); err != nil {
		return err
	}

	if err := os.MkdirAll(b.site.OutputDir, 0o755); err != nil {
		return errors.ErrSiteInit(b.site.Name, "creating output directory: "+err.Error())
	}

	renderer, err := render.NewHTMLRenderer(b.site.TemplateDir)
	if err != nil {
		return errors.ErrSiteInit(b.site.Name, "loading templates: "+err.Error())
	}
	b.renderer = renderer

	b.extractor = content.NewExtractor(b.site.ContentDir, b.log)
	b.optimizer = optimize.NewOptimizer(b.site.OutputDir, nil, b.log)
	b.cache = build.NewBuildCache(
		filepath.Join(b.site.OutputDir, cacheFileName),
		b.global.Build.CacheMaxBytes,
		time.Duration(b.global.Build.CacheMaxAgeDays)*24*time.Hour,
		b.log,
	)

	return nil
}

// extract validates every game into the registry. Individual failures are
// recorded and skipped; only a missing content tree aborts.
func (b *Builder) extract(ctx context.Context) error {
	ids, err := b.extractor.ListGames()
	if err != nil {
		return errors.ErrSiteInit(b.site.Name, "listing games: "+err.Error())
	}
	b.report.TotalGames = len(ids)

	for _, id := range ids {
		record, err := b.extractor.Extract(ctx, id)
		if err != nil {
			b.log.Warn(ctx, err, "skipping invalid game", "game", id)
			b.report.RecordFailure(id, err)
			continue
		}
		b.registry.Register(record)
	}

	b.log.Info(ctx, "extraction complete",
		"games", b.registry.Count(), "failed", b.report.Failed)

	return nil
}

// plan fingerprints every registered game and produces the unit list.
// Units are partitioned by game id and kind, so no output path has two
// writers.
func (b *Builder) plan(ctx context.Context) []*build.BuildUnit {
	var units []*build.BuildUnit

	for _, record := range b.registry.All() {
		var assetHashes []string

		if record.HeroImage != "" {
			heroHash, err := build.HashFile(record.HeroImage)
			if err != nil {
				b.log.Warn(ctx, err, "hero image unreadable, page renders without it", "game", record.ID)
			} else {
				assetHashes = append(assetHashes, heroHash)

				if b.site.Features.OptimizeImages {
					if paths, err := b.optimizer.VariantPaths(record.HeroImage); err == nil {
						b.heroRel[record.ID] = filepath.ToSlash(paths["hero"])
						units = append(units, &build.BuildUnit{
							Kind:        build.UnitOptimizeImage,
							Site:        b.site.Name,
							Game:        record,
							Fingerprint: heroHash,
							ImageSource: record.HeroImage,
						})
					}
				}
			}
		}

		units = append(units, &build.BuildUnit{
			Kind:        build.UnitRenderPage,
			Site:        b.site.Name,
			Game:        record,
			Fingerprint: build.Fingerprint(record, b.site.TemplateVersion, assetHashes),
			OutputPath:  filepath.Join(b.site.OutputDir, "games", record.ID+".html"),
		})
	}

	b.log.Info(ctx, "plan complete", "units", len(units))
	return units
}

// execute runs the image wave to completion before the page wave, so a
// page only ever references hero renditions that exist on disk.
func (b *Builder) execute(ctx context.Context, units []*build.BuildUnit) {
	var images, pages []*build.BuildUnit
	for _, unit := range units {
		if unit.Kind == build.UnitOptimizeImage {
			images = append(images, unit)
		} else {
			pages = append(pages, unit)
		}
	}

	b.runWave(ctx, images)
	b.runWave(ctx, pages)
}

func (b *Builder) runWave(ctx context.Context, units []*build.BuildUnit) {
	if len(units) == 0 {
		return
	}

	pipeline := build.NewPipeline(build.PipelineConfig{
		Workers:   b.site.Workers,
		QueueSize: b.global.Build.QueueSize,
		Force:     b.global.Build.Force,
	}, b.cache, b.renderPage, b.optimizeImage, b.log)

	pipeline.Start(ctx)

	go func() {
		for _, unit := range units {
			if err := pipeline.Submit(ctx, unit); err != nil {
				b.log.Warn(ctx, err, "unit not submitted", "key", unit.Key())
			}
		}
		pipeline.CloseQueue()
	}()

	var failedPages []string
	for result := range pipeline.Results() {
		unit := result.Unit
		switch {
		case result.Err != nil:
			b.report.RecordFailure(unit.Game.ID, result.Err)
			if unit.Kind == build.UnitOptimizeImage {
				// The page renders without a hero rather than pointing
				// at a rendition that was never written.
				delete(b.heroRel, unit.Game.ID)
			} else {
				failedPages = append(failedPages, unit.Game.ID)
			}
		case result.CacheHit:
			b.report.CacheHits++
			if unit.Kind == build.UnitRenderPage {
				b.pagesBuilt[unit.Game.ID] = true
			}
		default:
			b.report.Built++
			b.report.BytesWritten += result.BytesWritten
			if unit.Kind == build.UnitRenderPage {
				b.pagesBuilt[unit.Game.ID] = true
			}
		}
	}

	// Unregister failed pages once the pool has joined, so the index,
	// sitemap, and related widgets never link to them.
	for _, id := range failedPages {
		b.registry.Remove(id)
	}
}

// renderPage is the pipeline's RenderFunc.
func (b *Builder) renderPage(ctx context.Context, unit *build.BuildUnit) ([]byte, error) {
	record := unit.Game

	related := b.registry.Related(record.ID, relatedGames)
	relatedCtx := make([]render.GameContext, 0, len(related))
	for _, r := range related {
		relatedCtx = append(relatedCtx, render.NewGameContext(r, b.pageURL(r.ID), b.heroSrc(r.ID)))
	}

	page := render.GamePage{
		Site:      b.siteContext(),
		Game:      render.NewGameContext(record, b.pageURL(record.ID), b.heroSrc(record.ID)),
		Related:   relatedCtx,
		Canonical: b.canonicalURL(record.ID),
	}

	return b.renderer.Render(render.TemplateGame, page)
}

// optimizeImage is the pipeline's OptimizeFunc.
func (b *Builder) optimizeImage(ctx context.Context, unit *build.BuildUnit) (string, int64, error) {
	result, err := b.optimizer.Optimize(unit.ImageSource)
	if err != nil {
		return "", 0, err
	}
	return filepath.Join(b.site.OutputDir, result.Variants["hero"]), result.Bytes, nil
}

// finalize persists the cache and writes the site-wide artifacts,
// single-threaded after the pool has joined.
func (b *Builder) finalize(ctx context.Context) error {
	if err := b.cache.Save(); err != nil {
		b.log.Warn(ctx, err, "build cache not persisted")
	}

	writer := &artifactWriter{site: b.site, outputDir: b.site.OutputDir, renderer: b.renderer}
	siteCtx := b.siteContext()

	var published []*content.GameRecord
	for _, record := range b.registry.All() {
		if b.pagesBuilt[record.ID] {
			published = append(published, record)
		}
	}

	if b.site.Features.Sitemap {
		urls := make([]string, 0, len(published))
		for _, record := range published {
			urls = append(urls, b.canonicalURL(record.ID))
		}
		sort.Strings(urls)
		if err := writer.WriteSitemap(urls); err != nil {
			return err
		}
	}

	if b.site.Features.Robots {
		if err := writer.WriteRobots(); err != nil {
			return err
		}
	}

	if b.site.Features.Manifest {
		if err := writer.WriteManifest(); err != nil {
			return err
		}
	}

	if b.site.Features.ErrorPages {
		if err := writer.WriteErrorPages(siteCtx); err != nil {
			return err
		}
	}

	if b.site.Features.ServiceWorker {
		if err := writer.WriteServiceWorker(nil); err != nil {
			return err
		}
	}

	games := make([]render.GameContext, 0, len(published))
	for _, record := range published {
		games = append(games, render.NewGameContext(record, b.pageURL(record.ID), b.heroSrc(record.ID)))
	}
	if err := writer.WriteIndex(siteCtx, games); err != nil {
		return err
	}

	hits, misses, _, _ := b.cache.Stats()
	b.log.Info(ctx, "build complete",
		"built", b.report.Built,
		"cache_hits", hits,
		"cache_misses", misses,
		"failed", b.report.Failed,
	)

	return nil
}

func (b *Builder) siteContext() render.SiteContext {
	title := b.site.Title
	if title == "" {
		title = b.site.Name
	}
	return render.SiteContext{
		Name:        b.site.Name,
		Title:       template.HTML(validation.SanitizeHTMLContent(title)),
		Description: template.HTML(validation.SanitizeHTMLContent(b.site.Description)),
		BaseURL:     b.site.BaseURL,
	}
}

func (b *Builder) pageURL(id string) string {
	return "/games/" + id + ".html"
}

func (b *Builder) canonicalURL(id string) string {
	return b.site.BaseURL + b.pageURL(id)
}

func (b *Builder) heroSrc(id string) string {
	if rel, ok := b.heroRel[id]; ok {
		return "/" + rel
	}
	return ""
}
