package export

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/protocol/internal/config"
	"github.com/hpungsan/protocol/internal/errors"
)

// Sink receives a finished document.
type Sink interface {
	// Offer delivers content under filename and returns where it went.
	Offer(ctx context.Context, filename string, content []byte) (string, error)
}

// FileSink writes documents into a directory on disk.
type FileSink struct {
	Dir    string // default destination, usually <baseDir>/exports
	Config *config.Config
}

// Offer writes content to Dir/filename.
func (s *FileSink) Offer(ctx context.Context, filename string, content []byte) (string, error) {
	return s.WriteTo(ctx, filepath.Join(s.Dir, filepath.Base(filename)), content)
}

// WriteTo writes content to path after validating it. The file is written to a
// temporary sibling and renamed into place, so an existing file survives a
// failed write.
func (s *FileSink) WriteTo(ctx context.Context, path string, content []byte) (string, error) {
	if err := ValidatePath(path, s.Dir, s.Config); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", errors.NewCancelled("export")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(content); err != nil {
		return "", errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return "", errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return "", errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return "", errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return path, nil
}

// MaxImportBytes caps the size of a document read by Load.
const MaxImportBytes = 1 << 20

// Load reads a previously exported markdown document from path. The same
// directory rules as WriteTo apply.
func (s *FileSink) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ValidateImportPath(path, s.Dir, s.Config); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("import")
	}

	file, err := openFileNoFollowRead(path)
	if err != nil {
		if _, ok := err.(*errors.ProtocolError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}
	if len(data) > MaxImportBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("import file exceeds %d bytes", MaxImportBytes))
	}
	return data, nil
}
