package fsutil

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/.cache/huggingface/hub
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// ExpandHomeOr is ExpandHome that falls back to path unchanged when the home
// directory cannot be resolved.
func ExpandHomeOr(path string) string {
	p, err := ExpandHome(path)
	if err != nil {
		return path
	}
	return p
}

// PathExists checks if the given path exists.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// ResolveExecutable returns the absolute path of an executable given either
// as a path or as a bare name looked up in PATH.
func ResolveExecutable(name string) (string, error) {
	name = ExpandHomeOr(name)
	if strings.ContainsRune(name, filepath.Separator) {
		fi, err := os.Stat(name)
		if err != nil {
			return "", err
		}
		if fi.IsDir() || fi.Mode()&0o111 == 0 {
			return "", fmt.Errorf("%s is not executable", name)
		}
		return filepath.Abs(name)
	}
	return exec.LookPath(name)
}
