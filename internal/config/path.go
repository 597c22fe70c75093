// Package config loads basket settings from viper and checks them.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "basket"

// ExpandPath expands $VARS and a leading ~ in path.
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ConfigDir is where config.yaml and OAuth tokens live:
// $XDG_CONFIG_HOME/basket, else ~/.config/basket.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir is where the database lives: $XDG_DATA_HOME/basket, else
// ~/.local/share/basket.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, fallback string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName)
	}
	return filepath.Join(ExpandPath("~"), fallback, appName)
}
