//go:build !unix

package trackcache

import "os"

// mapReadOnly falls back to a plain read on platforms without mmap
// support (see mmap_unix.go).
func mapReadOnly(path string) (data []byte, closer func() error, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
