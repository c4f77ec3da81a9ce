package recording

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileExtension is appended to every recording base name
const FileExtension = ".csv"

var (
	// ErrInvalidBaseName is returned for empty or path-like base names
	ErrInvalidBaseName = errors.New("invalid recording base name")
	// ErrNoFreeName is returned when every candidate file name is taken
	ErrNoFreeName = errors.New("no free recording file name")
)

// NormalizeBaseName trims whitespace and a trailing .csv and rejects names
// that would leave the output directory.
func NormalizeBaseName(base string) (string, error) {
	base = strings.TrimSpace(base)
	base = strings.TrimSuffix(base, FileExtension)

	if base == "" || base == "." || base == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidBaseName, base)
	}
	if strings.ContainsAny(base, `/\`) || strings.ContainsRune(base, 0) {
		return "", fmt.Errorf("%w: %q must not contain path separators", ErrInvalidBaseName, base)
	}
	return base, nil
}

// UniqueFilename returns the first unused path among base.csv, base_1.csv
// up to base_<maxSuffix>.csv, then base_YYYYMMDD_HHMMSS.csv.
func UniqueFilename(dir, base string, maxSuffix int, now time.Time) (string, error) {
	base, err := NormalizeBaseName(base)
	if err != nil {
		return "", err
	}

	candidate := filepath.Join(dir, base+FileExtension)
	if free, err := isFree(candidate); err != nil || free {
		return candidate, err
	}

	for i := 1; i <= maxSuffix; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, FileExtension))
		if free, err := isFree(candidate); err != nil || free {
			return candidate, err
		}
	}

	candidate = filepath.Join(dir, fmt.Sprintf("%s_%s%s", base, now.Format("20060102_150405"), FileExtension))
	if free, err := isFree(candidate); err != nil || free {
		return candidate, err
	}

	return "", fmt.Errorf("%w for %q", ErrNoFreeName, base)
}

func isFree(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	return false, fmt.Errorf("failed to check %s: %w", path, err)
}
