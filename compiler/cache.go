package compiler

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/stratlang/stratc/diag"
)

const objCacheMaxBytes = 256 * 1024 * 1024 // 256 MB

// cacheEntry is the persisted result of one successful compilation.
// Warnings are stored alongside the code so a cache hit replays the same
// diagnostics a cold compile would have produced.
type cacheEntry struct {
	Code      string            `json:"code"`
	SourceMap json.RawMessage   `json:"sourceMap,omitempty"`
	Warnings  []diag.Diagnostic `json:"warnings,omitempty"`
}

// objCacheDir returns the base directory for the object cache.
func objCacheDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "stratc", "objcache"), nil
}

// objCacheKey returns a hex hash key for one compilation. The file name
// participates because it is embedded in the generated header and in the
// source map, so the same source under two names is two entries.
func objCacheKey(name, source string, opts Options) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0}) // separator
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(opts.keyString()))
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// objCacheLookup loads the cached entry for key if one exists. Touches the
// file to update its LRU timestamp.
func objCacheLookup(dir, key string) (*cacheEntry, bool) {
	path := filepath.Join(dir, key+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is treated as a miss and replaced on store.
		os.Remove(path)
		return nil, false
	}
	now := time.Now()
	os.Chtimes(path, now, now)
	return &entry, true
}

// objCacheStore writes entry under key, then runs LRU eviction if the cache
// exceeds the size cap. The entry is written to a temporary file and renamed
// into place so readers never observe a partial entry. Store failures are
// silent: the cache is an accelerator, not a correctness dependency.
func objCacheStore(dir, key string, entry *cacheEntry) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	tmp, err := os.CreateTemp(dir, key+".tmp-*")
	if err != nil {
		return
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, key+".json")); err != nil {
		os.Remove(tmp.Name())
		return
	}

	objCacheEvict(dir)
}

// objCacheEvict removes the oldest entries until the cache is under the size cap.
func objCacheEvict(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	type entry struct {
		path    string
		size    int64
		modTime time.Time
	}

	var files []entry
	var totalSize int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, e.Name())
		files = append(files, entry{path: path, size: info.Size(), modTime: info.ModTime()})
		totalSize += info.Size()
	}

	if totalSize <= objCacheMaxBytes {
		return
	}

	// Sort oldest first.
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	for _, f := range files {
		if totalSize <= objCacheMaxBytes {
			break
		}
		os.Remove(f.path)
		totalSize -= f.size
	}
}
