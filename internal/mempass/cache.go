package mempass

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/robert-at-pretension-io/bram-map/internal/config"
	"github.com/robert-at-pretension-io/bram-map/internal/mapper"
	"github.com/robert-at-pretension-io/bram-map/internal/memcell"
	"github.com/robert-at-pretension-io/bram-map/internal/template"
)

const cacheIndexVersion = 1

// mapperVersion changes whenever mapping output for the same input may change.
const mapperVersion = "bram-map-mapper/1"

type cacheEntry struct {
	Key           string `json:"key"`
	ResultPath    string `json:"result_path"`
	MapperVersion string `json:"mapper_version"`
}

type cacheIndex struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// mappingCache stores successful per-cell mappings keyed by a hash of
// everything that determines them.
type mappingCache struct {
	dir     string
	version string
	mu      sync.Mutex
	index   cacheIndex
}

func newMappingCache(dir, version string) *mappingCache {
	return &mappingCache{
		dir:     dir,
		version: version,
		index: cacheIndex{
			Version: cacheIndexVersion,
			Entries: make(map[string]cacheEntry),
		},
	}
}

func (c *mappingCache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *mappingCache) resultPathForCell(cell string) string {
	h := sha256.Sum256([]byte(cell))
	return filepath.Join(c.dir, "results", hex.EncodeToString(h[:])+".json")
}

func (c *mappingCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}
	var idx cacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != cacheIndexVersion {
		// Reset on version mismatch
		c.index = cacheIndex{Version: cacheIndexVersion, Entries: make(map[string]cacheEntry)}
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]cacheEntry)
	}
	c.index = idx
	return nil
}

func (c *mappingCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeJSONAtomic(c.indexPath(), c.index)
}

func (c *mappingCache) Get(cell, key string) (*mapper.Result, bool, error) {
	c.mu.Lock()
	entry, ok := c.index.Entries[cell]
	c.mu.Unlock()
	if !ok || entry.Key != key || entry.MapperVersion != c.version {
		return nil, false, nil
	}

	data, err := os.ReadFile(entry.ResultPath)
	if err != nil {
		return nil, false, fmt.Errorf("read cached mapping: %w", err)
	}
	var res mapper.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("parse cached mapping: %w", err)
	}
	return &res, true, nil
}

func (c *mappingCache) Put(cell, key string, res *mapper.Result) error {
	path := c.resultPathForCell(cell)
	if err := writeJSONAtomic(path, res); err != nil {
		return err
	}

	c.mu.Lock()
	c.index.Entries[cell] = cacheEntry{
		Key:           key,
		ResultPath:    path,
		MapperVersion: c.version,
	}
	c.mu.Unlock()
	return nil
}

// cacheKey hashes the inputs that determine a cell's mapping.
func cacheKey(d *memcell.Descriptor, templates []*template.Template, strict bool) (string, error) {
	data, err := json.Marshal(struct {
		Version    string               `json:"version"`
		Descriptor *memcell.Descriptor  `json:"descriptor"`
		Templates  []*template.Template `json:"templates"`
		Strict     bool                 `json:"strict"`
	}{mapperVersion, d, templates, strict})
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}

func resolveCacheDir(designDir string, cfg *config.Config) string {
	dir := cfg.Analysis.Cache.Dir
	if dir == "" {
		dir = config.DefaultCacheDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(designDir, dir)
	}
	return dir
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
