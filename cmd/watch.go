package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcadeforge/arcadeforge/internal/site"
	"github.com/arcadeforge/arcadeforge/internal/watcher"
)

var (
	watchSite     string
	watchDebounce time.Duration
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild sites when content changes",
	Long: `Watch builds the selected sites, then watches their content and template
directories and rebuilds incrementally on changes. Rapid change bursts
(editor saves, git checkouts) are debounced into a single rebuild.

Stop with Ctrl-C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchSite, "site", "", "watch only the named site")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "quiet period before a rebuild")
}

func runWatch(cmd *cobra.Command, args []string) error {
	global, log, err := loadGlobal()
	if err != nil {
		return err
	}

	names, err := selectSites(global, watchSite)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial build; incremental rebuilds ride on the same cache.
	if reports, err := site.RunAll(ctx, global, names, log); err != nil {
		for _, r := range reports {
			if r != nil {
				printReport(r)
			}
		}
		fmt.Println("initial build had failures, watching anyway")
	}

	w, err := watcher.New(watchDebounce, func(ctx context.Context, events []watcher.ChangeEvent) error {
		reports, err := site.RunAll(ctx, global, names, log)
		for _, r := range reports {
			if r != nil {
				printReport(r)
			}
		}
		return err
	}, log)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	for _, name := range names {
		if err := w.AddRecursive(filepath.Join(global.SitesDir, name)); err != nil {
			return fmt.Errorf("watching %s: %w", name, err)
		}
	}

	fmt.Printf("watching %d site(s), Ctrl-C to stop\n", len(names))

	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
