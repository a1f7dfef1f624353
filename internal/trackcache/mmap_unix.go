//go:build unix

package trackcache

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapReadOnly memory-maps path read-only for the Init scan. Mirrors the
// platform-split pattern the wider pack uses for OS-specific primitives
// (dns_sd.go / dns_sd_avahi.go), with internal/trackcache/mmap_other.go as
// the portable fallback.
func mapReadOnly(path string) (data []byte, closer func() error, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if fi.Size() == 0 {
		return nil, func() error { return nil }, nil
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return mapped, func() error { return unix.Munmap(mapped) }, nil
}
