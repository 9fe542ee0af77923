package site

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arcadeforge/arcadeforge/internal/config"
	"github.com/arcadeforge/arcadeforge/internal/logging"
)

// maxConcurrentSites bounds how many sites build at once. Each site runs
// its own worker pool, so this stays small.
const maxConcurrentSites = 4

// RunAll builds the named sites concurrently. A failing site never stops
// its siblings; the error reports which sites failed after every report
// is in. Reports come back sorted by site name.
func RunAll(ctx context.Context, global *config.Config, names []string, log logging.Logger) ([]*Report, error) {
	reports := make([]*Report, len(names))
	failed := make([]string, 0)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSites)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			report, err := buildOne(gctx, global, name, log)

			mu.Lock()
			reports[i] = report
			if err != nil {
				log.Error(gctx, err, "site build failed", "site", name)
				failed = append(failed, name)
			}
			mu.Unlock()

			// Per-site isolation: never propagate, so the group does not
			// cancel the remaining sites.
			return nil
		})
	}

	// Only returns ctx errors since the goroutines swallow site failures.
	if err := g.Wait(); err != nil {
		return reports, err
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		return reports, fmt.Errorf("%d of %d sites failed: %v", len(failed), len(names), failed)
	}

	return reports, nil
}

func buildOne(ctx context.Context, global *config.Config, name string, log logging.Logger) (*Report, error) {
	siteCfg, err := config.LoadSite(global.SitesDir, name, global)
	if err != nil {
		report := NewReport(name)
		report.RecordFailure("", err)
		report.Finish(PhaseFailed)
		return report, err
	}

	return NewBuilder(global, siteCfg, log).Run(ctx)
}
