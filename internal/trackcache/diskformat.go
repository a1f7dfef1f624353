package trackcache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCorrupt is returned (and logged, not propagated fatally) when the
// on-disk cache file fails validation during Init.
var ErrCorrupt = errors.New("trackcache: corrupt cache file")

const (
	magic = "CTC\x00"

	flagMtime64   = 1 << 0
	flagBigEndian = 1 << 1

	headerSize = 8 // 4-byte magic + 4 flag bytes
	alignment  = 8 // machine-word alignment on 64-bit hosts
)

// isBigEndianHost reports the host's native byte order without resorting
// to unsafe, by round-tripping a known value through binary.NativeEndian.
func isBigEndianHost() bool {
	b := make([]byte, 2)
	binary.NativeEndian.PutUint16(b, 0x0102)
	return b[0] == 0x01
}

func alignUp(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

// recordHeaderSize returns the fixed-field size (size+duration+mtime) for
// the given mtime width, i.e. the offset where the NUL-terminated string
// region begins.
func recordHeaderSize(mtime64 bool) int {
	if mtime64 {
		return 4 + 4 + 8
	}
	return 4 + 4 + 4
}

// encodeRecord serializes tr as a single self-describing record: size
// (including the 4-byte size field itself), duration, mtime, then the
// NUL-terminated path followed by alternating NUL-terminated key/value
// strings. The returned slice is unpadded; the caller pads to alignment
// between records.
func encodeRecord(tr *Track, order binary.ByteOrder, mtime64 bool) []byte {
	var strs bytes.Buffer
	strs.WriteString(tr.Path)
	strs.WriteByte(0)
	for _, c := range tr.Comments {
		strs.WriteString(c.Key)
		strs.WriteByte(0)
		strs.WriteString(c.Value)
		strs.WriteByte(0)
	}

	hdr := recordHeaderSize(mtime64)
	size := hdr + strs.Len()
	buf := make([]byte, size)
	order.PutUint32(buf[0:4], uint32(size))
	order.PutUint32(buf[4:8], uint32(tr.Duration))
	if mtime64 {
		order.PutUint64(buf[8:16], uint64(tr.Mtime))
	} else {
		order.PutUint32(buf[8:12], uint32(int32(tr.Mtime)))
	}
	copy(buf[hdr:], strs.Bytes())
	return buf
}

// writeCacheFile atomically rewrites path with tracks (already sorted by
// the caller), using a create-temp-file/write/rename-over sequence so a
// reader never sees a half-written file. New writes always emit a 64-bit mtime field
// and record the host's native byte order in the flags byte, per the
// Open Question resolved in DESIGN.md.
func writeCacheFile(path string, tracks []*Track) error {
	order := binary.ByteOrder(binary.NativeEndian)

	var buf bytes.Buffer
	buf.WriteString(magic)
	flags := byte(flagMtime64)
	if isBigEndianHost() {
		flags |= flagBigEndian
	}
	buf.WriteByte(flags)
	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.WriteByte(0)

	for _, tr := range tracks {
		rec := encodeRecord(tr, order, true)
		buf.Write(rec)
		if pad := alignUp(buf.Len()) - buf.Len(); pad > 0 {
			buf.Write(make([]byte, pad))
		}
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("trackcache: create cache dir %q: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("trackcache: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("trackcache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("trackcache: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("trackcache: rename temp file to %q: %w", path, err)
	}
	return nil
}

// decodeTracks validates and parses a cache file's full byte image
// (header + records), returning every live record. Any structural
// violation — truncated header, bad magic, a record claiming to extend
// past the buffer, a string region not ending in NUL, or an even count of
// NUL terminators — aborts the whole load with ErrCorrupt, leaving the
// table empty rather than partially populated.
func decodeTracks(data []byte) ([]*Track, error) {
	if len(data) < headerSize || string(data[0:4]) != magic {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	flagByte := data[4]
	mtime64 := flagByte&flagMtime64 != 0
	bigEndian := flagByte&flagBigEndian != 0

	var order binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}

	var tracks []*Track
	off := headerSize
	hdrSize := recordHeaderSize(mtime64)

	for off < len(data) {
		if off+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated record size at %d", ErrCorrupt, off)
		}
		size := int(order.Uint32(data[off : off+4]))
		if size < hdrSize || off+size > len(data) {
			return nil, fmt.Errorf("%w: record size %d out of bounds at %d", ErrCorrupt, size, off)
		}

		rec := data[off : off+size]
		duration := int32(order.Uint32(rec[4:8]))

		var mtime int64
		var stringsOff int
		if mtime64 {
			mtime = int64(order.Uint64(rec[8:16]))
			stringsOff = 16
		} else {
			mtime = int64(int32(order.Uint32(rec[8:12])))
			stringsOff = 12
		}

		parts, err := splitNULTerminated(rec[stringsOff:])
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 || len(parts)%2 == 0 {
			return nil, fmt.Errorf("%w: even NUL-terminator count at %d", ErrCorrupt, off)
		}

		tr := &Track{Path: parts[0], Duration: duration, Mtime: mtime}
		for i := 1; i+1 < len(parts); i += 2 {
			tr.Comments = append(tr.Comments, Comment{Key: parts[i], Value: parts[i+1]})
		}
		tracks = append(tracks, tr)

		off += size
		off = alignUp(off)
	}
	return tracks, nil
}

// splitNULTerminated splits a NUL-terminated string region into its
// constituent strings. The region must end with a NUL byte; the
// returned count equals the number of NUL terminators found.
func splitNULTerminated(region []byte) ([]string, error) {
	if len(region) == 0 || region[len(region)-1] != 0 {
		return nil, fmt.Errorf("%w: string region does not end in NUL", ErrCorrupt)
	}
	segs := bytes.Split(region[:len(region)-1], []byte{0})
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = string(s)
	}
	return out, nil
}
