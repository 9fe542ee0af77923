// Package config provides configuration management for arcadeforge using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// A build run is configured in two layers: the global config file
// (.arcadeforge.yml, overridable via --config or ARCADEFORGE_CONFIG_FILE,
// env overrides with the ARCADEFORGE_ prefix) and one site.yaml per site
// directory under sites_dir. Site configurations are immutable once a
// build starts.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the global build configuration.
type Config struct {
	SitesDir   string      `mapstructure:"sites_dir"   yaml:"sites_dir"`
	OutputRoot string      `mapstructure:"output_root" yaml:"output_root"`
	Log        LogConfig   `mapstructure:"log"         yaml:"log"`
	Build      BuildConfig `mapstructure:"build"       yaml:"build"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// BuildConfig controls the scheduler and cache behavior.
type BuildConfig struct {
	// Workers bounds the worker pool. Zero means runtime.NumCPU().
	Workers int `mapstructure:"workers" yaml:"workers"`
	// QueueSize bounds the unit queue; producers block when it is full.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
	// Force bypasses the build cache entirely.
	Force bool `mapstructure:"force" yaml:"force"`
	// FailureThreshold is the page failure rate above which the run is
	// reported as failed (0 disables the threshold, 0.5 means half).
	FailureThreshold float64 `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	// CacheMaxBytes bounds the persisted cache size before eviction.
	CacheMaxBytes int64 `mapstructure:"cache_max_bytes" yaml:"cache_max_bytes"`
	// CacheMaxAgeDays evicts entries older than this on save.
	CacheMaxAgeDays int `mapstructure:"cache_max_age_days" yaml:"cache_max_age_days"`
}

// FeatureFlags enables optional site outputs.
type FeatureFlags struct {
	Sitemap        bool `mapstructure:"sitemap"         yaml:"sitemap"`
	Robots         bool `mapstructure:"robots"          yaml:"robots"`
	Manifest       bool `mapstructure:"manifest"        yaml:"manifest"`
	ServiceWorker  bool `mapstructure:"service_worker"  yaml:"service_worker"`
	ErrorPages     bool `mapstructure:"error_pages"     yaml:"error_pages"`
	OptimizeImages bool `mapstructure:"optimize_images" yaml:"optimize_images"`
}

// SiteConfig describes one site to build. Loaded from
// <sites_dir>/<name>/site.yaml; Name defaults to the directory name.
type SiteConfig struct {
	Name            string       `mapstructure:"name"             yaml:"name"`
	BaseURL         string       `mapstructure:"base_url"         yaml:"base_url"`
	Title           string       `mapstructure:"title"            yaml:"title"`
	Description     string       `mapstructure:"description"      yaml:"description"`
	OutputDir       string       `mapstructure:"output_dir"       yaml:"output_dir"`
	ContentDir      string       `mapstructure:"content_dir"      yaml:"content_dir"`
	TemplateDir     string       `mapstructure:"template_dir"     yaml:"template_dir"`
	TemplateVersion string       `mapstructure:"template_version" yaml:"template_version"`
	Features        FeatureFlags `mapstructure:"features"         yaml:"features"`
	Workers         int          `mapstructure:"workers"          yaml:"workers"`
}

// DefaultFeatures returns the feature set used when site.yaml omits the
// features block.
func DefaultFeatures() FeatureFlags {
	return FeatureFlags{
		Sitemap:        true,
		Robots:         true,
		Manifest:       true,
		ServiceWorker:  true,
		ErrorPages:     true,
		OptimizeImages: true,
	}
}

// Load builds the global Config from viper state (config file, env,
// flags) with defaults applied.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.SitesDir == "" {
		config.SitesDir = "sites"
	}
	if config.OutputRoot == "" {
		config.OutputRoot = "output"
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
	if config.Build.Workers <= 0 {
		config.Build.Workers = runtime.NumCPU()
	}
	if config.Build.QueueSize <= 0 {
		config.Build.QueueSize = 128
	}
	if config.Build.FailureThreshold == 0 {
		config.Build.FailureThreshold = 0.5
	}
	if config.Build.CacheMaxBytes <= 0 {
		config.Build.CacheMaxBytes = 256 << 20
	}
	if config.Build.CacheMaxAgeDays <= 0 {
		config.Build.CacheMaxAgeDays = 30
	}
}

// DiscoverSites enumerates site directories under sitesDir that carry a
// site.yaml, sorted by name for deterministic multi-site runs.
func DiscoverSites(sitesDir string) ([]string, error) {
	entries, err := os.ReadDir(sitesDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}
		if _, err := os.Stat(filepath.Join(sitesDir, entry.Name(), "site.yaml")); err == nil {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}

// LoadSite reads <sitesDir>/<name>/site.yaml and fills in the defaults
// derived from the site directory layout. The result has not passed Init
// validation yet; callers run Validate before building.
func LoadSite(sitesDir, name string, global *Config) (*SiteConfig, error) {
	siteRoot := filepath.Join(sitesDir, name)

	raw, err := os.ReadFile(filepath.Join(siteRoot, "site.yaml"))
	if err != nil {
		return nil, err
	}

	site := SiteConfig{Features: DefaultFeatures()}
	if err := yaml.Unmarshal(raw, &site); err != nil {
		return nil, err
	}

	if site.Name == "" {
		site.Name = name
	}
	if site.ContentDir == "" {
		site.ContentDir = filepath.Join(siteRoot, "content")
	}
	if site.TemplateDir == "" {
		// Sites without a templates directory render with the built-in
		// templates.
		candidate := filepath.Join(siteRoot, "templates")
		if _, err := os.Stat(candidate); err == nil {
			site.TemplateDir = candidate
		}
	}
	if site.OutputDir == "" {
		// Relative to the output root; containment is enforced at Init.
		site.OutputDir = site.Name
	}
	if site.TemplateVersion == "" {
		site.TemplateVersion = "v1"
	}
	if site.Workers <= 0 {
		site.Workers = global.Build.Workers
	}

	return &site, nil
}
