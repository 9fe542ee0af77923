package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcadeforge/arcadeforge/internal/config"
)

// sitesCmd represents the sites command
var sitesCmd = &cobra.Command{
	Use:     "sites",
	Aliases: []string{"ls"},
	Short:   "List buildable sites",
	Long: `Sites lists every directory under the sites directory that carries a
site.yaml, with its base URL and content location.`,
	RunE: runSites,
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}

func runSites(cmd *cobra.Command, args []string) error {
	global, _, err := loadGlobal()
	if err != nil {
		return err
	}

	names, err := config.DiscoverSites(global.SitesDir)
	if err != nil {
		return fmt.Errorf("discovering sites in %s: %w", global.SitesDir, err)
	}
	if len(names) == 0 {
		fmt.Printf("no sites found in %s\n", global.SitesDir)
		return nil
	}

	for _, name := range names {
		siteCfg, err := config.LoadSite(global.SitesDir, name, global)
		if err != nil {
			fmt.Printf("%s  (unreadable: %v)\n", name, err)
			continue
		}
		fmt.Printf("%s  %s\n", siteCfg.Name, siteCfg.BaseURL)
	}

	return nil
}
