package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxCollisionSuffix bounds the search for a free file name.
const maxCollisionSuffix = 100000

const unsafeNameChars = `/\:*?"<>|`

// SanitizeFileName replaces characters that are not allowed in file names
// on common filesystems with '_' and trims surrounding whitespace.
func SanitizeFileName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(unsafeNameChars, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// SanitizeName is SanitizeFileName with control characters dropped and the
// result cut to maxLen runes (0 = unlimited). Used for EDL titles.
func SanitizeName(s string, maxLen int) string {
	cleaned := SanitizeFileName(strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s))
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

// baseName is the sanitized name for segment i (0-based), falling back to
// clip_{i+1} when the name is empty or sanitizes to nothing.
func baseName(name string, i int) string {
	if s := SanitizeFileName(name); s != "" {
		return s
	}
	return "clip_" + strconv.Itoa(i+1)
}

// resolveOutputPath returns dir/base.ext, or dir/base_N.ext with the smallest
// N >= 1 that does not exist yet.
func resolveOutputPath(dir, base, ext string) (string, error) {
	for n := 0; n <= maxCollisionSuffix; n++ {
		name := base + "." + ext
		if n > 0 {
			name = base + "_" + strconv.Itoa(n) + "." + ext
		}
		path := filepath.Join(dir, name)
		_, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("check %s: %w", name, err)
		}
	}
	return "", fmt.Errorf("no free file name for %q after %d attempts", base, maxCollisionSuffix)
}

// ValidateOutputDir checks that dir exists and is a directory.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return &PreconditionError{Field: "output_dir", Reason: "is required"}
	}

	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return &PreconditionError{Field: "output_dir", Reason: "cannot contain path traversal"}
		}
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &PreconditionError{Field: "output_dir", Reason: "does not exist", Err: err}
		}
		return &PreconditionError{Field: "output_dir", Reason: "cannot be read", Err: err}
	}
	if !info.IsDir() {
		return &PreconditionError{Field: "output_dir", Reason: "is not a directory"}
	}

	return nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
