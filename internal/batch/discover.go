package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Extension is the file suffix Discover selects, compared case-insensitively.
const Extension = ".wav"

// Discover returns the names of the regular files directly inside dir whose
// extension is Extension, in lexical order. Symbolic links count when they
// resolve to a regular file. Subdirectories are not searched.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: '%s'", ErrInputDirNotFound, dir)
		}
		return nil, fmt.Errorf("batch: reading %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !strings.EqualFold(filepath.Ext(e.Name()), Extension) {
			continue
		}
		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			mode = info.Mode()
		}
		if mode.IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
