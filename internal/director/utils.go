package director

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FindLatestScript returns the most recently modified YAML script in dir.
// Entries that cannot be stat'ed, such as dangling links, are skipped.
func FindLatestScript(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read scripts directory: %w", err)
	}

	var latest string
	var latestTime time.Time
	for _, entry := range entries {
		if !isScript(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err == nil && info.Mode()&fs.ModeSymlink != 0 {
			info, err = os.Stat(path)
		}
		if err != nil || info.IsDir() {
			continue
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latest, latestTime = path, info.ModTime()
		}
	}

	if latest == "" {
		return "", fmt.Errorf("no script files found in %s", dir)
	}
	return latest, nil
}

func isScript(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// LoadScript resolves a script location: empty means the built-in script, a
// directory means its newest YAML file.
func LoadScript(location string) (*Script, string, error) {
	if location == "" {
		return DefaultScript(), "built-in", nil
	}
	fi, err := os.Stat(location)
	if err != nil {
		return nil, "", err
	}
	path := location
	if fi.IsDir() {
		if path, err = FindLatestScript(location); err != nil {
			return nil, "", err
		}
	}
	script, err := ReadScript(path)
	if err != nil {
		return nil, "", err
	}
	return script, path, nil
}
