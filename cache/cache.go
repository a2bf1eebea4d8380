// Package cache memoizes compilation results keyed by the function
// AST (see Key) and the role a compilation targets, the way the
// sheens service layer persists machine state to BoltDB rather than
// recomputing it on every request.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/aslcompile/aslc/ast"
	"github.com/aslcompile/aslc/core"
)

var bucketName = []byte("aslc-compile-cache")

// Cache is the storage contract CompileCached needs. Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(key string) (doc *core.ASLDoc, ok bool, err error)
	Put(key string, doc *core.ASLDoc) error
}

// Key hashes fn's structure together with opts' role, so that two
// functions with identical bodies compiled against the same role
// share a cache entry, and either a body edit or a role change misses.
func Key(fn *ast.Func, opts *core.CompileOptions) string {
	role := ""
	if opts != nil {
		role = opts.Role
	}
	h := sha256.New()
	fmt.Fprintf(h, "%#v", fn)
	fmt.Fprintf(h, "\x00role=%s", role)
	return hex.EncodeToString(h.Sum(nil))
}

// CompileCached compiles fn under opts, consulting cache first and
// writing back on a miss. A cache error is treated as a miss: it logs
// nothing and silently recompiles, since a cold or unreachable cache
// must never fail a compilation.
func CompileCached(cache Cache, fn *ast.Func, opts *core.CompileOptions) (*core.ASLDoc, error) {
	key := Key(fn, opts)
	if cache != nil {
		if doc, ok, err := cache.Get(key); err == nil && ok {
			return doc, nil
		}
	}
	doc, err := core.Compile(fn, opts)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		_ = cache.Put(key, doc)
	}
	return doc, nil
}

// BoltCache is a Cache backed by a single BoltDB file, one bucket,
// keyed by the sha256 hex digest from Key.
type BoltCache struct {
	db *bolt.DB
}

// OpenBoltCache opens (creating if necessary) a BoltDB file at
// filename and ensures the cache bucket exists.
func OpenBoltCache(filename string) (*BoltCache, error) {
	db, err := bolt.Open(filename, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltCache{db: db}, nil
}

// Close closes the underlying BoltDB file.
func (c *BoltCache) Close() error {
	return c.db.Close()
}

func (c *BoltCache) Get(key string) (*core.ASLDoc, bool, error) {
	var raw []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get([]byte(key))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	var doc core.ASLDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, err
	}
	return &doc, true, nil
}

func (c *BoltCache) Put(key string, doc *core.ASLDoc) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), raw)
	})
}

// MemCache is an in-process Cache, useful for tests and for the CLI's
// single-invocation mode where a BoltDB file would outlive its
// usefulness.
type MemCache struct {
	mu      sync.Mutex
	entries map[string]*core.ASLDoc
}

func NewMemCache() *MemCache {
	return &MemCache{entries: map[string]*core.ASLDoc{}}
}

func (c *MemCache) Get(key string) (*core.ASLDoc, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.entries[key]
	return doc, ok, nil
}

func (c *MemCache) Put(key string, doc *core.ASLDoc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = doc
	return nil
}
