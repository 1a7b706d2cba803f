package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/nexus/internal/shared"
)

// partialSuffixes mark files a downloader is still writing or abandoned.
var partialSuffixes = []string{".part", ".ytdl", ".temp", ".tmp"}

// IsPartial reports whether name is an in-progress or leftover download file.
func IsPartial(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, ".part-frag") {
		return true
	}
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// StemFiles lists regular files in dir named stem or stem.<anything>, in name order.
func StemFiles(dir, stem string) ([]string, error) {
	if stem == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !hasStem(name, stem) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}

// Locate finds the finished file for stem in dir, skipping partial downloads.
func Locate(dir, stem string) (string, error) {
	paths, err := StemFiles(dir, stem)
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		if !IsPartial(filepath.Base(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no file for %s in %s", shared.ErrFileNotFound, stem, dir)
}

// RemoveStem deletes every file for stem in dir except keep, which may be empty.
func RemoveStem(dir, stem, keep string) error {
	paths, err := StemFiles(dir, stem)
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range paths {
		if p == keep {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func hasStem(name, stem string) bool {
	if !strings.HasPrefix(name, stem) {
		return false
	}
	return len(name) == len(stem) || name[len(stem)] == '.'
}
