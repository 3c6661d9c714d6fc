// Package cache persists successful query results as JSON files keyed by a
// fingerprint of the command and parameter. Only successes are stored;
// failures always retry against the live channels.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"lookup-gateway/types"
)

// Store is a file-backed result cache. A disabled store answers every lookup
// with a miss and drops every save.
type Store struct {
	dir     string
	enabled bool
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, enabled bool) (*Store, error) {
	if enabled {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{dir: dir, enabled: enabled}, nil
}

// Fingerprint derives the cache key for a command and parameter pair.
func Fingerprint(command, param string) string {
	sum := md5.Sum([]byte(command + ":" + param))
	return hex.EncodeToString(sum[:])
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Lookup returns the cached result for the key, or a miss. An unreadable or
// corrupt entry counts as a miss.
func (s *Store) Lookup(key string) (*types.QueryResult, bool) {
	if s == nil || !s.enabled {
		return nil, false
	}
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}
	var result types.QueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		log.Printf("⚠️ Discarding corrupt cache entry %s: %v", key, err)
		return nil, false
	}
	return &result, true
}

// Save stores a successful result under the key. Non-success results and
// write errors are dropped without failing the query.
func (s *Store) Save(key string, result *types.QueryResult) {
	if s == nil || !s.enabled || !result.IsSuccess() {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := os.WriteFile(s.path(key), raw, 0o644); err != nil {
		log.Printf("⚠️ Failed to write cache entry %s: %v", key, err)
	}
}
