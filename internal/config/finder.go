package config

import (
	"os"
	"path/filepath"
)

// Extensions are the config file formats looked for, in order
var Extensions = []string{"yml", "yaml", "json", "toml"}

// FindLocalConfig finds a .rdgo.<ext> file by walking up directories
func FindLocalConfig(dir string) string {
	for {
		for _, ext := range Extensions {
			path := filepath.Join(dir, ".rdgo."+ext)

			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}

// GlobalConfigDir returns $XDG_CONFIG_HOME/rdgo, defaulting to ~/.config/rdgo
func GlobalConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rdgo")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "rdgo")
}
