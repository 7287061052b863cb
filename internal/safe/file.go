// Package safe provides file reads hardened against symlink tricks and oversized input.
package safe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize is the default maximum file size for safe file operations (1MB).
const DefaultMaxFileSize = 1 << 20

// ReadOptions configures the behavior of ReadFile.
type ReadOptions struct {
	// MaxSize is the maximum allowed file size in bytes. Zero means DefaultMaxFileSize.
	MaxSize int64
	// AllowSymlinks allows reading through a symlink. Default is false.
	AllowSymlinks bool
}

// ReadFile reads a file with security validations.
// It rejects symlinks by default, validates file size, and ensures only
// regular files are read.
func ReadFile(path string, opts *ReadOptions) ([]byte, error) {
	if opts == nil {
		opts = &ReadOptions{}
	}
	maxSize := opts.MaxSize
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}

	cleanPath := filepath.Clean(path)

	info, err := os.Lstat(cleanPath)
	if err != nil {
		return nil, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if !opts.AllowSymlinks {
			return nil, fmt.Errorf("file %q is a symlink, which is not allowed for security reasons", path)
		}
		info, err = os.Stat(cleanPath)
		if err != nil {
			return nil, err
		}
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("path %q is not a regular file", path)
	}

	if info.Size() > maxSize {
		return nil, fmt.Errorf("file exceeds maximum allowed size of %d bytes", maxSize)
	}

	return os.ReadFile(cleanPath)
}

// ReadSecret reads a single-value secret file (API token, password) and
// returns its whitespace-trimmed contents. An empty file is an error.
func ReadSecret(path string) (string, error) {
	data, err := ReadFile(path, &ReadOptions{MaxSize: 64 << 10, AllowSymlinks: true})
	if err != nil {
		return "", err
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("file %q is empty", path)
	}

	return secret, nil
}
