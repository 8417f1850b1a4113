// Package sandbox confines file-path action parameters (upload_file and
// friends) to a configured base directory, so the model cannot steer the
// browser at arbitrary host files.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// SanitizeArg validates a path-shaped argument against baseDir and returns
// the cleaned relative path. Absolute paths and traversal are rejected;
// non-path-looking arguments pass through unchanged.
func SanitizeArg(baseDir, arg string) (string, error) {
	if !looksPathLike(arg) {
		return arg, nil
	}
	if baseDir == "" {
		return "", errors.New("sandbox base directory is required")
	}
	if isAbsoluteOrDrive(arg) {
		return "", fmt.Errorf("absolute paths not allowed: %q", arg)
	}
	if isPathTraversal(arg) {
		return "", fmt.Errorf("path traversal not allowed: %q", arg)
	}

	rel := filepath.Clean(arg)
	if rel == "." {
		return rel, nil
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("argument must stay inside the base directory: %q", arg)
	}
	if err := ensureWithinRoot(baseDir, rel); err != nil {
		return "", err
	}
	return rel, nil
}

func isPathTraversal(p string) bool {
	clean := filepath.Clean(p)
	return strings.HasPrefix(clean, "../") || strings.Contains(clean, "/../") || clean == ".."
}

func isAbsoluteOrDrive(p string) bool {
	if filepath.IsAbs(p) {
		return true
	}
	if runtime.GOOS == "windows" && len(p) >= 2 && p[1] == ':' {
		return true
	}
	return false
}

// ensureWithinRoot resolves rel inside baseDir with os.Root, walking up to
// the nearest existing ancestor so symlinked escapes are caught even for
// paths that do not exist yet.
func ensureWithinRoot(baseDir, rel string) error {
	root, err := os.OpenRoot(baseDir)
	if err != nil {
		return fmt.Errorf("open base directory %q: %w", baseDir, err)
	}
	defer root.Close()

	candidate := rel
	for candidate != "" && candidate != "." {
		f, err := root.Open(candidate)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				candidate = filepath.Dir(candidate)
				continue
			}
			return fmt.Errorf("path %q escapes base directory: %w", rel, err)
		}
		f.Close()
		break
	}
	return nil
}

func looksPathLike(arg string) bool {
	if arg == "" {
		return false
	}
	if strings.HasPrefix(arg, ".") {
		return true
	}
	if strings.ContainsRune(arg, os.PathSeparator) {
		return true
	}
	return strings.ContainsRune(arg, '/') || strings.ContainsRune(arg, '\\')
}
