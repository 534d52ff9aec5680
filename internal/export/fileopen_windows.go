//go:build windows

package export

import (
	"os"

	"github.com/hpungsan/protocol/internal/errors"
)

// openFileNoFollow opens path for writing. O_NOFOLLOW does not exist on
// Windows; ValidatePath has already refused symlinks.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewFileNotFound(path)
	}
	return f, err
}
