// Package filex holds small filesystem helpers used by the file-backed
// session material store.
package filex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
)

// EnsureDir creates dir (and parents) with owner-only permissions and returns
// its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// WriteFileAtomic replaces path with data via a temp file and rename, so a
// reader never observes a half-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	suffix, err := common.MakeRandHexString(6)
	if err != nil {
		return err
	}
	tmp := path + ".tmp-" + suffix

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
