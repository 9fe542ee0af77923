package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcadeforge/arcadeforge/internal/config"
	"github.com/arcadeforge/arcadeforge/internal/site"
)

var (
	buildSite string
	buildJSON bool
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build one or all sites",
	Long: `Build renders every game page, optimizes images, and writes the SEO
artifacts for each site under the sites directory.

Unchanged pages are reused from the build cache. Use --force to rebuild
everything regardless of cache state.

Examples:
  arcadeforge build                          # build every site
  arcadeforge build --site play.example.com # build one site
  arcadeforge build --force                  # ignore the build cache
  arcadeforge build --json                   # machine-readable reports`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&buildSite, "site", "", "build only the named site")
	buildCmd.Flags().Bool("force", false, "rebuild everything, bypassing the build cache")
	buildCmd.Flags().IntP("workers", "w", 0, "worker pool size (default: number of CPUs)")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "emit build reports as JSON")

	bindFlags(buildCmd.Flags(), map[string]string{
		"build.force":   "force",
		"build.workers": "workers",
	})
}

func runBuild(cmd *cobra.Command, args []string) error {
	global, log, err := loadGlobal()
	if err != nil {
		return err
	}

	names, err := selectSites(global, buildSite)
	if err != nil {
		return err
	}

	reports, err := site.RunAll(cmd.Context(), global, names, log)

	for _, report := range reports {
		if report == nil {
			continue
		}
		if buildJSON {
			data, jerr := report.JSON()
			if jerr != nil {
				return jerr
			}
			fmt.Fprintln(os.Stdout, string(data))
		} else {
			printReport(report)
		}
	}

	return err
}

func printReport(r *site.Report) {
	fmt.Printf("%s: %s  built=%d cached=%d failed=%d (%.2fs)\n",
		r.Site, r.Phase, r.Built, r.CacheHits, r.Failed, r.Duration.Seconds())
	for _, f := range r.Failures {
		fmt.Printf("  %s: [%s] %s\n", f.Game, f.Code, f.Message)
	}
}

// selectSites resolves the --site flag against the discovered sites.
func selectSites(global *config.Config, only string) ([]string, error) {
	names, err := config.DiscoverSites(global.SitesDir)
	if err != nil {
		return nil, fmt.Errorf("discovering sites in %s: %w", global.SitesDir, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no sites found in %s", global.SitesDir)
	}

	if only == "" {
		return names, nil
	}

	for _, name := range names {
		if name == only {
			return []string{only}, nil
		}
	}
	return nil, fmt.Errorf("site %q not found in %s (available: %v)", only, global.SitesDir, names)
}
