package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/protocol/internal/config"
	"github.com/hpungsan/protocol/internal/errors"
)

func TestValidatePath_TraversalRejected(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()

	tests := []struct {
		name string
		path string
	}{
		{"parent traversal", "../backup.txt"},
		{"deep traversal", "../../etc/backup.txt"},
		{"mid-path traversal", dir + "/../backup.txt"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, dir, cfg)
			require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestValidatePath_Extension(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		file string
		ok   bool
	}{
		{"text", "a.txt", true},
		{"markdown", "a.md", true},
		{"html", "a.html", true},
		{"none", "a", false},
		{"jsonl", "a.jsonl", false},
		{"pdf", "a.pdf", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(filepath.Join(dir, tc.file), dir, nil)
			require.Equal(t, tc.ok, err == nil, "got %v", err)
		})
	}
}

func TestValidatePath_DirectoryRestriction(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	cfg := config.DefaultConfig()

	require.Error(t, ValidatePath(filepath.Join(other, "a.txt"), dir, cfg))
	require.Error(t, ValidatePath(filepath.Join(dir, "sub", "a.txt"), dir, cfg))

	cfg.AllowedPaths = []string{other}
	require.NoError(t, ValidatePath(filepath.Join(other, "a.txt"), dir, cfg))

	unsafe := config.DefaultConfig()
	unsafe.AllowUnsafePaths = true
	require.NoError(t, ValidatePath(filepath.Join(t.TempDir(), "a.txt"), dir, unsafe))
}

func TestValidatePath_SymlinkRejected_EvenWithUnsafePaths(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0600))
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	err := ValidatePath(link, dir, cfg)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestContainsTraversal(t *testing.T) {
	require.True(t, containsTraversal("../x.txt"))
	require.True(t, containsTraversal("a/../x.txt"))
	require.False(t, containsTraversal("a/..b/x.txt"))
	require.False(t, containsTraversal("x.txt"))
}
