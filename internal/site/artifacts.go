package site

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/arcadeforge/arcadeforge/internal/config"
	"github.com/arcadeforge/arcadeforge/internal/errors"
	"github.com/arcadeforge/arcadeforge/internal/render"
)

// sitemapURL is one <url> element of the sitemap.
type sitemapURL struct {
	Loc      string `xml:"loc"`
	Priority string `xml:"priority,omitempty"`
}

type sitemapSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// webManifest is the PWA manifest document.
type webManifest struct {
	Name            string `json:"name"`
	ShortName       string `json:"short_name"`
	StartURL        string `json:"start_url"`
	Display         string `json:"display"`
	BackgroundColor string `json:"background_color"`
	ThemeColor      string `json:"theme_color"`
	Description     string `json:"description"`
}

// artifactWriter emits the site-wide files once the worker pool has
// joined. All writes go through the same temp-then-rename publish as the
// pages themselves.
type artifactWriter struct {
	site      *config.SiteConfig
	outputDir string
	renderer  render.Renderer
}

// WriteSitemap writes sitemap.xml listing the index page and every
// successfully built game page, sorted by game id. pageURLs must already
// be sorted; passing failures here would advertise dead links.
func (w *artifactWriter) WriteSitemap(pageURLs []string) error {
	set := sitemapSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  []sitemapURL{{Loc: w.site.BaseURL + "/", Priority: "1.0"}},
	}
	for _, u := range pageURLs {
		set.URLs = append(set.URLs, sitemapURL{Loc: u, Priority: "0.8"})
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return errors.NewInternalError("encoding sitemap", err)
	}
	data := append([]byte(xml.Header), body...)
	data = append(data, '\n')

	return w.publish("sitemap.xml", data)
}

// WriteRobots writes robots.txt pointing crawlers at the sitemap.
func (w *artifactWriter) WriteRobots() error {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	b.WriteString("Disallow: /assets/\n\n")
	fmt.Fprintf(&b, "Sitemap: %s/sitemap.xml\n", w.site.BaseURL)

	return w.publish("robots.txt", []byte(b.String()))
}

// WriteManifest writes site.webmanifest. The display name title-cases the
// site slug; short_name is capped at twelve characters for launchers.
func (w *artifactWriter) WriteManifest() error {
	display := w.site.Title
	if display == "" {
		display = cases.Title(language.English).String(strings.ReplaceAll(w.site.Name, "-", " "))
	}

	short := display
	if len(short) > 12 {
		short = strings.TrimSpace(short[:12])
	}

	manifest := webManifest{
		Name:            display,
		ShortName:       short,
		StartURL:        "/",
		Display:         "standalone",
		BackgroundColor: "#111111",
		ThemeColor:      "#111111",
		Description:     w.site.Description,
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.NewInternalError("encoding manifest", err)
	}

	return w.publish("site.webmanifest", append(data, '\n'))
}

// WriteServiceWorker writes sw.js with a cache-first strategy for the
// shell and offline fallback for navigations.
func (w *artifactWriter) WriteServiceWorker(precache []string) error {
	urls := append([]string{"/", "/offline.html"}, precache...)

	quoted := make([]string, len(urls))
	for i, u := range urls {
		quoted[i] = fmt.Sprintf("%q", u)
	}

	sw := fmt.Sprintf(`const CACHE = "arcadeforge-%s-v1";
const PRECACHE = [%s];

self.addEventListener("install", (event) => {
  event.waitUntil(caches.open(CACHE).then((cache) => cache.addAll(PRECACHE)));
  self.skipWaiting();
});

self.addEventListener("activate", (event) => {
  event.waitUntil(
    caches.keys().then((keys) =>
      Promise.all(keys.filter((k) => k !== CACHE).map((k) => caches.delete(k)))
    )
  );
  self.clients.claim();
});

self.addEventListener("fetch", (event) => {
  if (event.request.mode === "navigate") {
    event.respondWith(
      fetch(event.request).catch(() => caches.match("/offline.html"))
    );
    return;
  }
  event.respondWith(
    caches.match(event.request).then((hit) => hit || fetch(event.request))
  );
});
`, w.site.Name, strings.Join(quoted, ", "))

	return w.publish("sw.js", []byte(sw))
}

// WriteErrorPages renders 404.html and offline.html.
func (w *artifactWriter) WriteErrorPages(siteCtx render.SiteContext) error {
	pages := map[string]string{
		render.TemplateNotFound: "404.html",
		render.TemplateOffline:  "offline.html",
	}

	for id, name := range pages {
		data, err := w.renderer.Render(id, render.ErrorPage{Site: siteCtx})
		if err != nil {
			return err
		}
		if err := w.publish(name, data); err != nil {
			return err
		}
	}

	return nil
}

// WriteIndex renders the games index page.
func (w *artifactWriter) WriteIndex(siteCtx render.SiteContext, games []render.GameContext) error {
	data, err := w.renderer.Render(render.TemplateIndex, render.IndexPage{
		Site:      siteCtx,
		Games:     games,
		Canonical: w.site.BaseURL + "/",
	})
	if err != nil {
		return err
	}

	return w.publish("index.html", data)
}

func (w *artifactWriter) publish(name string, data []byte) error {
	dest := filepath.Join(w.outputDir, name)

	tmp, err := os.CreateTemp(w.outputDir, ".artifact-*")
	if err != nil {
		return errors.NewIOError(errors.ErrCodeRenderFailure, "creating temp artifact", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewIOError(errors.ErrCodeRenderFailure, "writing "+name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewIOError(errors.ErrCodeRenderFailure, "closing "+name, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return errors.NewIOError(errors.ErrCodeRenderFailure, "publishing "+name, err)
	}

	return nil
}
