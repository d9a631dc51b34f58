// Package fileutil locates configuration files on disk.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// SystemConfigDir is the last place searched for configuration.
const SystemConfigDir = "/etc/deployhook"

// SearchPaths returns the first path that is an existing regular file.
func SearchPaths(paths []string) (string, error) {
	if path := SearchPathsOptional(paths); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("file not found in any of the search paths: %v", paths)
}

// SearchPathsOptional is SearchPaths returning "" when nothing matches.
func SearchPathsOptional(paths []string) string {
	for _, path := range paths {
		if FileExists(path) {
			return path
		}
	}
	return ""
}

// DefaultConfigPaths returns standard config search paths for a given filename.
// Search order:
// 1. Current directory (./<filename>)
// 2. Config subdirectory (./config/<filename>)
// 3. System-wide config (/etc/deployhook/<filename>)
func DefaultConfigPaths(filename string) []string {
	return []string{
		filepath.Join(".", filename),
		filepath.Join(".", "config", filename),
		filepath.Join(SystemConfigDir, filename),
	}
}

// FileExists checks if a file exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
