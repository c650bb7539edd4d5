// Package atomicfile writes files with write-then-rename semantics. Rename
// is atomic at the file-system level, so a reader never observes a partially
// written file under the canonical name: interruption between steps leaves
// either no effect or full effect.
package atomicfile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Write writes data to a temporary file in the target's directory, syncs it,
// and renames it onto path. On any failure the temporary file is removed and
// the previous canonical file, if any, is left untouched.
func Write(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpPath := tmp.Name()

	cleanup := func(cause error) error {
		tmp.Close()
		os.Remove(tmpPath)

		return cause
	}

	_, writeErr := tmp.Write(data)
	if writeErr != nil {
		return cleanup(fmt.Errorf("write temp file: %w", writeErr))
	}

	syncErr := tmp.Sync()
	if syncErr != nil {
		return cleanup(fmt.Errorf("sync temp file: %w", syncErr))
	}

	closeErr := tmp.Close()
	if closeErr != nil {
		return cleanup(fmt.Errorf("close temp file: %w", closeErr))
	}

	chmodErr := os.Chmod(tmpPath, perm)
	if chmodErr != nil {
		return cleanup(fmt.Errorf("chmod temp file: %w", chmodErr))
	}

	renameErr := os.Rename(tmpPath, path)
	if renameErr != nil {
		return cleanup(fmt.Errorf("rename temp file: %w", renameErr))
	}

	return nil
}
