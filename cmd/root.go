// Package cmd provides the arcadeforge command-line interface.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--config, --sites-dir, ...)
//  2. ARCADEFORGE_CONFIG_FILE environment variable
//  3. Individual environment variables (ARCADEFORGE_OUTPUT_ROOT, ...)
//  4. Configuration file (.arcadeforge.yml in the working directory)
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/arcadeforge/arcadeforge/internal/config"
	"github.com/arcadeforge/arcadeforge/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "arcadeforge",
	Short: "Incremental static site builder for game portals",
	Long: `ArcadeForge turns directories of per-game content (metadata, images,
embed descriptors) into deployable static sites: HTML pages, optimized
image renditions, and SEO artifacts (sitemap, robots.txt, web manifest,
service worker).

Builds are incremental: every page is fingerprinted over its sanitized
content, template version, and asset bytes, and unchanged pages are
served from the build cache.

Quick start:
  arcadeforge sites              List buildable sites
  arcadeforge build              Build every site
  arcadeforge build --site NAME  Build one site
  arcadeforge watch              Rebuild on content changes
  arcadeforge audit              SEO-audit the built output`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .arcadeforge.yml, can also use ARCADEFORGE_CONFIG_FILE env var)")
	flags.String("sites-dir", "", "directory containing site definitions (default \"sites\")")
	flags.String("output-root", "", "root directory for built sites (default \"output\")")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	bindFlags(flags, map[string]string{
		"sites_dir":   "sites-dir",
		"output_root": "output-root",
		"log.level":   "log-level",
		"log.format":  "log-format",
	})
}

// bindFlags maps configuration keys to their command-line flags so viper
// resolves flag values ahead of file and environment sources.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		viper.BindPFlag(key, flags.Lookup(flag))
	}
}

// initConfig wires viper to the config file and ARCADEFORGE_ environment
// variables. A missing config file is not an error; defaults apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("ARCADEFORGE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".arcadeforge")
	}

	viper.SetEnvPrefix("ARCADEFORGE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadGlobal builds the runtime config and logger shared by the commands.
func loadGlobal() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	log := logging.NewLogger(&logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	return cfg, log, nil
}
