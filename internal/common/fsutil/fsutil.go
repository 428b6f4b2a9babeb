package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/.config/residencyd
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// Resolve expands '~' and returns an absolute, cleaned path. Empty input
// stays empty.
func Resolve(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	p, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	return abs, nil
}

// PathExists reports whether path exists. Permission errors count as
// existing so callers surface them on open.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// FirstExisting returns the first candidate that exists after resolution.
func FirstExisting(candidates ...string) (string, bool) {
	for _, c := range candidates {
		p, err := Resolve(c)
		if err != nil || p == "" {
			continue
		}
		if PathExists(p) {
			return p, true
		}
	}
	return "", false
}
