// Package trackcache implements a persistent, process-wide, content
// addressed map from file path to parsed tags, duration and mtime: an
// in-memory hash table backed by an atomically-rewritten binary file,
// with single-flight decode on miss or staleness.
package trackcache

import (
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
)

// tableSize is the fixed hash table bucket count.
const tableSize = 1023

// Comment is a single case-insensitive-keyed (key, value) tag pair.
type Comment struct {
	Key   string
	Value string
}

// Track is the immutable record describing a playable item once published:
// path, tags, duration and mtime. Replacement is always remove+insert,
// never in-place mutation.
type Track struct {
	Path     string
	Duration int32 // whole seconds, -1 = unknown
	Mtime    int64 // 0 for remote sources
	Comments []Comment

	refs int32
}

// Ref increments the reference count and returns t, an acquire/release
// discipline in place of manual lifetime tracking. Go's GC reclaims the
// Track once unreachable; refs exists so callers (player, playlist
// entries, UI) can assert single-flight and cache-residency invariants in
// tests.
func (t *Track) Ref() *Track {
	atomic.AddInt32(&t.refs, 1)
	return t
}

// Unref decrements the reference count acquired by Ref or by Cache.Get.
func (t *Track) Unref() {
	atomic.AddInt32(&t.refs, -1)
}

// RefCount reports the current reference count, for tests.
func (t *Track) RefCount() int32 {
	return atomic.LoadInt32(&t.refs)
}

// ProbeFunc decodes path into a fresh Track when the cache has no entry, or
// the entry's mtime no longer matches the filesystem. It is the hook the
// cache uses to invoke the decoder's open+read-tags+duration path.
type ProbeFunc func(path string) (*Track, error)

// Cache is the in-memory hash table plus on-disk binary store. The zero
// value is not usable; construct with New.
type Cache struct {
	mu    sync.Mutex
	path  string
	table [tableSize][]*Track
	dirty bool
}

// New returns an empty, uninitialized Cache. Call Init before use.
func New() *Cache {
	return &Cache{}
}

// bucketIndex hashes path with a djb2-like function (hash = hash*31 + c)
// and reduces it modulo the table size.
func bucketIndex(path string) int {
	var hash uint32
	for i := 0; i < len(path); i++ {
		hash = hash*31 + uint32(path[i])
	}
	return int(hash % tableSize)
}

// Init loads the on-disk cache file at path, if any, populating the
// in-memory table. A missing file is not an error (the table starts
// empty and Close creates the file once the table has been mutated). A
// corrupt file is logged and the table is left empty and marked dirty, so
// the next Close regenerates the file from scratch.
func (c *Cache) Init(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.path = path
	data, closer, err := mapReadOnly(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer closer()

	if len(data) == 0 {
		return nil
	}

	tracks, err := decodeTracks(data)
	if err != nil {
		slog.Warn("trackcache: corrupt cache file, starting empty", "path", path, "error", err)
		c.table = [tableSize][]*Track{}
		c.dirty = true
		return ErrCorrupt
	}

	for _, tr := range tracks {
		c.insertLocked(tr)
	}
	slog.Info("trackcache: loaded cache", "path", path, "tracks", len(tracks))
	return nil
}

func (c *Cache) insertLocked(tr *Track) {
	idx := bucketIndex(tr.Path)
	c.table[idx] = append(c.table[idx], tr)
}

func (c *Cache) lookupLocked(path string) *Track {
	idx := bucketIndex(path)
	for _, tr := range c.table[idx] {
		if tr.Path == path {
			return tr
		}
	}
	return nil
}

func (c *Cache) removeLocked(path string) {
	idx := bucketIndex(path)
	bucket := c.table[idx]
	for i, tr := range bucket {
		if tr.Path == path {
			tr.Unref()
			c.table[idx] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

// Get returns the cached Track for path, probing via probe on a miss or a
// stale mtime. The whole check-insert-return sequence runs under the cache
// mutex, guaranteeing at most one probe runs concurrently for the same
// path: a second caller arriving while a probe is in flight blocks on the
// mutex and, once it acquires it, finds the freshly-inserted record
// instead of re-probing.
//
// probe must not itself call back into the cache: lock ordering flows
// caller → player → {cache, metadata}, and Get is already inside the
// cache's critical section.
func (c *Cache) Get(path string, probe ProbeFunc) (*Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tr := c.lookupLocked(path); tr != nil {
		if tr.Mtime == 0 || mtimeMatches(path, tr.Mtime) {
			return tr.Ref(), nil
		}
		c.removeLocked(path)
	}

	tr, err := probe(path)
	if err != nil {
		return nil, err
	}
	c.insertLocked(tr)
	c.dirty = true
	return tr.Ref(), nil
}

// mtimeMatches reports whether path's current filesystem mtime (as whole
// Unix seconds) equals cached. A stat failure is treated as stale so the
// caller re-probes (and surfaces the stat error through the probe path).
func mtimeMatches(path string, cached int64) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.ModTime().Unix() == cached
}

// Remove evicts path from the table, decrementing its reference count.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookupLocked(path) == nil {
		return
	}
	c.removeLocked(path)
	c.dirty = true
}

// Len returns the number of live records, for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, bucket := range c.table {
		n += len(bucket)
	}
	return n
}

// Close rewrites the on-disk store if the table has diverged since Init
// (any Get-triggered insert or explicit Remove), sorting all live records
// by path and writing them with an atomic create-temp/write/rename
// sequence. A clean cache (never mutated) is a no-op.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	var tracks []*Track
	for _, bucket := range c.table {
		tracks = append(tracks, bucket...)
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Path < tracks[j].Path })

	if err := writeCacheFile(c.path, tracks); err != nil {
		return err
	}
	c.dirty = false
	slog.Info("trackcache: saved cache", "path", c.path, "tracks", len(tracks))
	return nil
}
