// Package cache provides the incremental build cache.
//
// The cache maps a component identity to the fingerprint of the description
// it was last built from and the directory its outputs were published under.
// It lives as buildstate.json at the root of the published generation, so the
// cache and the outputs it describes are always committed together:
//
//  1. Load reads the mapping of the current generation (absent means empty)
//  2. Lookup answers hits only for an exact fingerprint match
//  3. Record stages entries for the generation being built, in memory
//  4. Save writes the whole staged mapping atomically with sorted keys
//
// A run that dies before Save leaves the previous file untouched, and a run
// that dies after Save but before the generation is committed leaves it in
// the discarded staging slot.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/atomicfile"
	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/fingerprint"
)

// FileName is the cache file name at the root of a published generation
const FileName = "buildstate.json"

// Cache holds the previous mapping and the one being recorded for this run
type Cache struct {
	previous map[string]Entry
	next     map[string]Entry
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		previous: make(map[string]Entry),
		next:     make(map[string]Entry),
	}
}

// Load reads a persisted cache. A missing file yields an empty cache.
func Load(path string) (*Cache, error) {
	c := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}

		return nil, fmt.Errorf("failed to read build cache: %w", err)
	}

	if err := json.Unmarshal(data, &c.previous); err != nil {
		return nil, fmt.Errorf("failed to parse build cache %s: %w", path, err)
	}

	if c.previous == nil {
		c.previous = make(map[string]Entry)
	}

	return c, nil
}

// Lookup returns the previous entry for id if its fingerprint matches exactly
func (c *Cache) Lookup(id string, fp fingerprint.Digest) (Entry, bool) {
	entry, ok := c.previous[id]
	if !ok || fp == "" || entry.Fingerprint != fp {
		return Entry{}, false
	}

	return entry, true
}

// Record stages an entry for the generation being built
func (c *Cache) Record(id string, fp fingerprint.Digest, dirname string) {
	c.next[id] = Entry{Fingerprint: fp, Dirname: dirname}
}

// Previous returns the identities present in the loaded cache, sorted
func (c *Cache) Previous() []string {
	return sortedKeys(c.previous)
}

// Recorded returns the identities staged for this run, sorted
func (c *Cache) Recorded() []string {
	return sortedKeys(c.next)
}

// Marshal returns the staged mapping as it would be saved
func (c *Cache) Marshal() ([]byte, error) {
	// Map keys are emitted in sorted order
	data, err := json.MarshalIndent(c.next, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode build cache: %w", err)
	}

	return append(data, '\n'), nil
}

// Save atomically writes the staged mapping to path
func (c *Cache) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save build cache: %w", err)
	}

	return nil
}

func sortedKeys(m map[string]Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
