package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CopyFileWithTimestamp copies a file into destDir under a timestamped name
// (base_unix.ext) so repeated ingestions of the same file never collide.
// Returns the destination path.
func CopyFileWithTimestamp(sourcePath, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %v", err)
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %v", err)
	}
	defer src.Close()

	name := filepath.Base(sourcePath)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	destPath := filepath.Join(destDir, fmt.Sprintf("%s_%d%s", base, time.Now().Unix(), ext))

	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %v", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return "", fmt.Errorf("failed to copy file: %v", err)
	}
	return destPath, nil
}

// GetFileNameWithoutExt returns the base name of a path without its extension.
func GetFileNameWithoutExt(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
