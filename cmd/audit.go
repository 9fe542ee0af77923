package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arcadeforge/arcadeforge/internal/config"
	"github.com/arcadeforge/arcadeforge/internal/seo"
)

var (
	auditSite string
	auditJSON bool
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "SEO-audit built sites",
	Long: `Audit scans the built output of each site for missing titles, meta
descriptions, canonical links, image alt text, and sitemap coverage in
both directions (pages missing from the sitemap, sitemap entries with no
page).

Run after a build; the audit reads the output tree, never the content.
Exits non-zero when any site has findings.`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditSite, "site", "", "audit only the named site")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "emit findings as JSON")
}

func runAudit(cmd *cobra.Command, args []string) error {
	global, log, err := loadGlobal()
	if err != nil {
		return err
	}

	names, err := selectSites(global, auditSite)
	if err != nil {
		return err
	}

	dirty := 0
	for _, name := range names {
		siteCfg, err := config.LoadSite(global.SitesDir, name, global)
		if err != nil {
			return fmt.Errorf("loading site %s: %w", name, err)
		}

		outputDir := siteCfg.OutputDir
		if !filepath.IsAbs(outputDir) {
			outputDir = filepath.Join(global.OutputRoot, outputDir)
		}

		audit, err := seo.NewScanner(outputDir, siteCfg.BaseURL, log).Scan()
		if err != nil {
			return fmt.Errorf("auditing %s: %w", name, err)
		}

		if auditJSON {
			data, jerr := json.MarshalIndent(map[string]any{"site": name, "audit": audit}, "", "  ")
			if jerr != nil {
				return jerr
			}
			fmt.Fprintln(os.Stdout, string(data))
		} else {
			fmt.Printf("%s: %d pages, %d findings\n", name, audit.Pages, len(audit.Issues))
			for _, issue := range audit.Issues {
				if issue.Detail != "" {
					fmt.Printf("  %s: %s (%s)\n", issue.Page, issue.Kind, issue.Detail)
				} else {
					fmt.Printf("  %s: %s\n", issue.Page, issue.Kind)
				}
			}
		}

		if !audit.Clean() {
			dirty++
		}
	}

	if dirty > 0 {
		return fmt.Errorf("%d of %d sites have SEO findings", dirty, len(names))
	}
	return nil
}
