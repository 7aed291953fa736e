package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "threadline"

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/threadline/threadline.yaml, then
// ~/.config/threadline/threadline.yaml, then ./threadline.yaml.
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, appName, appName+".yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", appName, appName+".yaml"))
	}

	candidates = append(candidates, appName+".yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/threadline if set, otherwise ~/.local/share/threadline.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}
