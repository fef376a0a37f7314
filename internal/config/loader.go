package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/codes"
)

// EnvPrefix prefixes every environment override, e.g. RDGO_GIT_PATH
const EnvPrefix = "RDGO"

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"workdir":             "workdir",
	"tempdir":             "tempdir",
	"verbose":             "verbose",
	"log-format":          "log_format",
	"metrics-file":        "metrics_file",
	"archive-compression": "archive_compression",
}

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForCommand layers defaults, the global config, the local config of
// the working directory, an explicit --config file, the environment and
// the command's flags, in increasing priority
func (l *Loader) LoadForCommand(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.setupEnv()
	l.loadGlobalConfig()
	l.bindCommandFlags(cmd)
	l.loadLocalConfig(viper.GetString("workdir"))

	if err := l.loadExplicitConfig(cmd); err != nil {
		return nil, err
	}

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("workdir", DefaultWorkDir)
	viper.SetDefault("tempdir", "")
	viper.SetDefault("preserve_temp", DefaultPreserveTemp)
	viper.SetDefault("verbose", DefaultVerbose)
	viper.SetDefault("log_format", DefaultLogFormat)
	viper.SetDefault("archive_compression", DefaultArchiveCompression)
	viper.SetDefault("git_path", DefaultGitPath)
	viper.SetDefault("rpmbuild_path", DefaultRpmbuildPath)
	viper.SetDefault("mockchain_path", DefaultMockchainPath)
	viper.SetDefault("createrepo_path", DefaultCreaterepoPath)
	viper.SetDefault("metrics_file", "")
}

// setupEnv maps every key to RDGO_<KEY>
func (l *Loader) setupEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadGlobalConfig loads the per-user configuration
func (l *Loader) loadGlobalConfig() {
	globalDir := GlobalConfigDir()
	if globalDir == "" {
		return
	}

	for _, ext := range Extensions {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.MergeInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig loads the nearest .rdgo.<ext> at or above dir
func (l *Loader) loadLocalConfig(dir string) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return // config.Load() will handle validation
	}

	localPath := FindLocalConfig(absDir)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// loadExplicitConfig loads the file named by --config, which must exist
func (l *Loader) loadExplicitConfig(cmd *cobra.Command) error {
	flag := cmd.Flags().Lookup("config")
	if flag == nil || flag.Value.String() == "" {
		return nil
	}

	viper.SetConfigFile(flag.Value.String())
	if err := viper.MergeInConfig(); err != nil {
		return codes.ConfigErrorf("failed to read config %s: %v", flag.Value.String(), err)
	}

	return nil
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	for name, key := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			_ = viper.BindPFlag(key, flag)
		}
	}
}
