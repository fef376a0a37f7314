package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/archive"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/workspace"
)

// Default configuration values
const (
	DefaultWorkDir            = "."
	DefaultLogFormat          = "text"
	DefaultArchiveCompression = string(archive.Gzip)
	DefaultGitPath            = "git"
	DefaultRpmbuildPath       = "rpmbuild"
	DefaultMockchainPath      = "mockchain"
	DefaultCreaterepoPath     = "createrepo_c"
	DefaultVerbose            = false
	DefaultPreserveTemp       = false
)

// Holds the configuration options for rpmdistro-gitoverlay
type Config struct {
	// Working root holding overlay.yml, src/, snapshot/ and rpms
	WorkDir string

	// Parent of temporary directories; empty means the system default
	TempDir string
	// Keep temporary directories for post-mortem debugging
	PreserveTemp bool

	// Enable debug logging
	Verbose bool
	// Log output format: text or json
	LogFormat string

	// Compression of generated source archives: gzip or xz
	ArchiveCompression string

	// External tools
	GitPath        string
	RpmbuildPath   string
	MockchainPath  string
	CreaterepoPath string

	// node-exporter textfile to write run metrics to
	MetricsFile string
}

// Load builds a Config from the current viper state
func Load() (*Config, error) {
	cfg := &Config{
		WorkDir:            viper.GetString("workdir"),
		TempDir:            viper.GetString("tempdir"),
		PreserveTemp:       viper.GetBool("preserve_temp"),
		Verbose:            viper.GetBool("verbose"),
		LogFormat:          viper.GetString("log_format"),
		ArchiveCompression: viper.GetString("archive_compression"),
		GitPath:            viper.GetString("git_path"),
		RpmbuildPath:       viper.GetString("rpmbuild_path"),
		MockchainPath:      viper.GetString("mockchain_path"),
		CreaterepoPath:     viper.GetString("createrepo_path"),
		MetricsFile:        viper.GetString("metrics_file"),
	}

	if workspace.LegacyPreserve() {
		cfg.PreserveTemp = true
	}

	// Apply defaults if not set
	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultWorkDir
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}

	if cfg.ArchiveCompression == "" {
		cfg.ArchiveCompression = DefaultArchiveCompression
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate resolves paths to absolute form and checks enumerated values
func (c *Config) Validate() error {
	abs, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return fmt.Errorf("invalid working directory: %w", err)
	}
	c.WorkDir = abs

	for _, p := range []*string{&c.TempDir, &c.MetricsFile} {
		if *p == "" {
			continue
		}

		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("invalid path %s: %w", *p, err)
		}
		*p = abs
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return codes.ConfigErrorf("invalid log format: %s", c.LogFormat)
	}

	if _, err := archive.ParseCompression(c.ArchiveCompression); err != nil {
		return codes.ConfigErrorf("%v", err)
	}

	tools := []struct{ key, path string }{
		{"git_path", c.GitPath},
		{"rpmbuild_path", c.RpmbuildPath},
		{"mockchain_path", c.MockchainPath},
		{"createrepo_path", c.CreaterepoPath},
	}
	for _, tool := range tools {
		if tool.path == "" {
			return codes.MissingKey(tool.key)
		}
	}

	return nil
}

// Compression returns the parsed archive compression
func (c *Config) Compression() archive.Compression {
	comp, _ := archive.ParseCompression(c.ArchiveCompression)

	return comp
}
