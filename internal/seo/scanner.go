// Package seo audits a built output tree: every indexable page needs a
// title, a meta description, a canonical link, alt text on images, and a
// sitemap entry. The audit never mutates the tree.
package seo

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/arcadeforge/arcadeforge/internal/errors"
	"github.com/arcadeforge/arcadeforge/internal/logging"
)

// Issue is one audit finding.
type Issue struct {
	Page   string `json:"page"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// Audit finding kinds.
const (
	KindMissingTitle       = "missing-title"
	KindMissingDescription = "missing-description"
	KindMissingCanonical   = "missing-canonical"
	KindMissingAlt         = "missing-alt"
	KindNotInSitemap       = "not-in-sitemap"
	KindDeadSitemapEntry   = "dead-sitemap-entry"
)

// Audit is the result of scanning one output tree.
type Audit struct {
	Pages  int     `json:"pages"`
	Issues []Issue `json:"issues"`
}

// Clean reports whether the audit found nothing.
func (a *Audit) Clean() bool {
	return len(a.Issues) == 0
}

// Scanner audits the output tree of one site.
type Scanner struct {
	outputDir string
	baseURL   string
	log       logging.Logger
}

// NewScanner creates a scanner over outputDir. baseURL anchors sitemap
// coverage checks.
func NewScanner(outputDir, baseURL string, log logging.Logger) *Scanner {
	return &Scanner{
		outputDir: outputDir,
		baseURL:   strings.TrimRight(baseURL, "/"),
		log:       log.WithComponent("seo"),
	}
}

// Scan walks every .html page, audits the indexable ones, and checks the
// page set against sitemap.xml in both directions.
func (s *Scanner) Scan() (*Audit, error) {
	audit := &Audit{}
	indexable := make(map[string]bool) // page rel path -> true

	err := filepath.WalkDir(s.outputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".html" {
			return nil
		}

		rel, err := filepath.Rel(s.outputDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		page, err := s.auditPage(path, rel)
		if err != nil {
			return err
		}

		audit.Pages++
		if page.noindex {
			return nil
		}
		indexable[rel] = true
		audit.Issues = append(audit.Issues, page.issues...)

		return nil
	})
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeInternal, "walking output tree", err)
	}

	s.checkSitemap(audit, indexable)

	sort.Slice(audit.Issues, func(i, j int) bool {
		if audit.Issues[i].Page != audit.Issues[j].Page {
			return audit.Issues[i].Page < audit.Issues[j].Page
		}
		return audit.Issues[i].Kind < audit.Issues[j].Kind
	})

	return audit, nil
}

type pageAudit struct {
	noindex bool
	issues  []Issue
}

func (s *Scanner) auditPage(path, rel string) (*pageAudit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeInternal, "opening page "+rel, err)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, errors.NewInternalError("parsing page "+rel, err)
	}

	var (
		title       string
		description bool
		canonical   bool
		noindex     bool
		missingAlts int
	)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name := attr(n, "name")
				content := attr(n, "content")
				if name == "description" && strings.TrimSpace(content) != "" {
					description = true
				}
				if name == "robots" && strings.Contains(content, "noindex") {
					noindex = true
				}
			case "link":
				if attr(n, "rel") == "canonical" && attr(n, "href") != "" {
					canonical = true
				}
			case "img":
				if strings.TrimSpace(attr(n, "alt")) == "" {
					missingAlts++
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	page := &pageAudit{noindex: noindex}
	if noindex {
		return page, nil
	}

	if title == "" {
		page.issues = append(page.issues, Issue{Page: rel, Kind: KindMissingTitle})
	}
	if !description {
		page.issues = append(page.issues, Issue{Page: rel, Kind: KindMissingDescription})
	}
	if !canonical {
		page.issues = append(page.issues, Issue{Page: rel, Kind: KindMissingCanonical})
	}
	if missingAlts > 0 {
		page.issues = append(page.issues, Issue{
			Page:   rel,
			Kind:   KindMissingAlt,
			Detail: fmt.Sprintf("%d image(s) without alt text", missingAlts),
		})
	}

	return page, nil
}

type sitemapDoc struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// checkSitemap cross-references indexable pages and sitemap entries. A
// missing sitemap file is itself a finding, not an error.
func (s *Scanner) checkSitemap(audit *Audit, indexable map[string]bool) {
	data, err := os.ReadFile(filepath.Join(s.outputDir, "sitemap.xml"))
	if err != nil {
		audit.Issues = append(audit.Issues, Issue{Page: "sitemap.xml", Kind: KindDeadSitemapEntry, Detail: "sitemap missing"})
		return
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		audit.Issues = append(audit.Issues, Issue{Page: "sitemap.xml", Kind: KindDeadSitemapEntry, Detail: "sitemap unparseable"})
		return
	}

	listed := make(map[string]bool, len(doc.URLs))
	for _, u := range doc.URLs {
		rel := strings.TrimPrefix(u.Loc, s.baseURL)
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" {
			rel = "index.html"
		}
		listed[rel] = true

		if !indexable[rel] {
			audit.Issues = append(audit.Issues, Issue{
				Page:   rel,
				Kind:   KindDeadSitemapEntry,
				Detail: u.Loc,
			})
		}
	}

	for rel := range indexable {
		if !listed[rel] {
			audit.Issues = append(audit.Issues, Issue{Page: rel, Kind: KindNotInSitemap})
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
