// Package files loads file content for routes. A missing file is not an
// error at this layer: callers receive empty content and decide what a
// miss means (the dispatcher turns it into a 404).
package files

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hearthweb/hearth/internal/logging"
)

// Load reads the entire content of the file at path. The second return
// value reports whether the file existed and was readable; on a miss the
// content is nil.
func Load(path string) ([]byte, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		logging.Warn("File not found",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, false
	}
	return content, true
}

// Resolve maps a request path remainder to a file inside folder. It
// rejects remainders that would escape the folder through parent
// references. The returned path is folder-relative joined, suitable for
// Load; ok is false when the remainder is unsafe.
func Resolve(folder, remainder string) (string, bool) {
	remainder = strings.TrimPrefix(remainder, "/")
	if remainder == "" || strings.Contains(remainder, "..") {
		return "", false
	}
	clean := filepath.Clean("/" + filepath.FromSlash(remainder))
	if clean == "/" {
		return "", false
	}
	return filepath.Join(folder, clean), true
}
