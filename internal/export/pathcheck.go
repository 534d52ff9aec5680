package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/protocol/internal/config"
	"github.com/hpungsan/protocol/internal/errors"
)

// ValidatePath checks an export destination:
// 1. no ".." components
// 2. a .txt, .md or .html extension
// 3. directly inside exportsDir or a configured allowed_paths entry (no subdirectories)
// 4. neither the parent directory nor the file is a symlink
//
// Requiring the file to sit directly in an allowed directory leaves no
// intermediate component to swap for a symlink between the check and the open.
func ValidatePath(path, exportsDir string, cfg *config.Config) error {
	return validatePath(path, exportsDir, cfg, false)
}

// ValidateImportPath applies the same rules to a document being imported,
// which must be an existing .md file.
func ValidateImportPath(path, exportsDir string, cfg *config.Config) error {
	return validatePath(path, exportsDir, cfg, true)
}

func validatePath(path, exportsDir string, cfg *config.Config, read bool) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	ext := filepath.Ext(cleaned)
	switch {
	case read && ext != FormatMarkdown.Ext():
		return errors.NewInvalidRequest("path must have a .md extension")
	case !read && !allowedExt(ext):
		return errors.NewInvalidRequest("path must have a .txt, .md or .html extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		allowedDirs, err := allowedDirs(exportsDir, cfg)
		if err != nil {
			return err
		}
		parentDir := filepath.Dir(absPath)
		if !isDirectlyInAllowedDir(parentDir, allowedDirs) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v",
					allowedDirs))
		}
		if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if read {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}

	// Symlink files are refused even with allow_unsafe_paths.
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

func allowedExt(ext string) bool {
	for _, f := range Formats {
		if ext == f.Ext() {
			return true
		}
	}
	return false
}

// allowedDirs returns exportsDir plus the absolute allowed_paths, with
// symlinked entries resolved.
func allowedDirs(exportsDir string, cfg *config.Config) ([]string, error) {
	dirs := []string{exportsDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, filepath.Clean(p))
			}
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d == "" {
			continue
		}
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

func isDirectlyInAllowedDir(parentDir string, allowedDirs []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, dir := range allowedDirs {
		if parentDir == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
