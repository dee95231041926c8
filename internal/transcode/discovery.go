package transcode

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	sourcePattern = "*.png"
	outputExt     = ".c"
)

// IsSourceName reports whether a directory entry name is a PNG input. The
// match is case-sensitive, so "LOGO.PNG" is ignored.
func IsSourceName(name string) bool {
	ok, err := filepath.Match(sourcePattern, name)
	return err == nil && ok
}

// FindSources lists PNG files directly inside dir, sorted by name.
// Directories are skipped; symlinks are followed.
func FindSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsSourceName(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !entry.Type().IsRegular() {
			info, statErr := os.Stat(path)
			if statErr != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		sources = append(sources, path)
	}
	sort.Strings(sources)
	return sources, nil
}

// Stem is the file name without its final extension. A name that is only an
// extension, such as ".png", is its own stem.
func Stem(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}

func OutputPath(destDir string, source string) string {
	return filepath.Join(destDir, Stem(source)+outputExt)
}

// ResolveDir expands a leading "~" and returns an absolute, cleaned path.
func ResolveDir(path string) (string, error) {
	value := strings.TrimSpace(path)
	if value == "" {
		return "", fmt.Errorf("%w: empty directory path", ErrInvalidInput)
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", value, err)
		}
		value = filepath.Join(home, value[1:])
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}
