package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// DirExists reports whether path is a directory. Anything else at path is an
// error.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	case !info.IsDir():
		return false, fmt.Errorf("%s exists and is not a directory", path)
	}
	return true, nil
}
