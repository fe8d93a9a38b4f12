// fsutil/files.go
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	commonerrors "github.com/deploymenttheory/go-rom-uf2/internal/common/errors"
)

// FileExists checks if a file exists and is not a directory
func FileExists(path string) bool {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// ReadFile reads an entire file into memory
func ReadFile(path string) ([]byte, error) {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", commonerrors.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", commonerrors.ErrFileReadError, path, err)
	}
	return data, nil
}

// WriteFile writes data to a file, creating its directory if necessary
func WriteFile(path string, data []byte, perm os.FileMode) error {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %s: %v", commonerrors.ErrFileWriteError, path, err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("%w: %s: %v", commonerrors.ErrFileWriteError, path, err)
	}
	return nil
}

// ReplaceExt swaps the extension of path for ext. A path without an
// extension gets ext appended.
func ReplaceExt(path, ext string) string {
	base := filepath.Base(path)
	if i := strings.LastIndex(base, "."); i > 0 {
		return path[:len(path)-len(base)+i] + ext
	}
	return path + ext
}
