package presets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when a preset name matches nothing in the catalogs.
var ErrNotFound = errors.New("preset not found")

// Catalog combines the cache and tree registries. Either may be nil.
type Catalog struct {
	Cache *Cache
	Tree  *Tree
}

// LoadCatalog reads whichever of the two catalog files is configured.
func LoadCatalog(cachePath, treePath string) (*Catalog, error) {
	catalog := &Catalog{}
	if strings.TrimSpace(cachePath) != "" {
		cache, err := LoadCache(cachePath)
		if err != nil {
			return nil, err
		}
		catalog.Cache = cache
	}
	if strings.TrimSpace(treePath) != "" {
		tree, err := LoadTree(treePath)
		if err != nil {
			return nil, err
		}
		catalog.Tree = tree
	}
	return catalog, nil
}

// Resolve turns a preset reference into a preset file path. A reference that
// already looks like an .epr path is returned unchanged; otherwise it is
// looked up by registry path in the cache and then the tree.
func (c *Catalog) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("preset reference is empty")
	}
	if looksLikePresetFile(ref) {
		return ref, nil
	}
	if c != nil {
		if preset, ok := c.Cache.Lookup(ref); ok && preset.Path != "" {
			return preset.Path, nil
		}
		if item, ok := c.Tree.Lookup(ref); ok && item.Preset != nil && item.Preset.Path != "" {
			return item.Preset.Path, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, ref)
}

// Find returns cache presets whose normalized registry path contains query,
// sorted by registry path.
func (c *Catalog) Find(query string) []*Preset {
	if c == nil || c.Cache == nil {
		return nil
	}
	needle := NormalizeName(query)
	var matches []*Preset
	for _, preset := range c.Cache.List {
		if strings.Contains(NormalizeName(preset.RegistryPath()), needle) {
			matches = append(matches, preset)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].RegistryPath() < matches[j].RegistryPath()
	})
	return matches
}

func looksLikePresetFile(ref string) bool {
	if strings.EqualFold(filepath.Ext(ref), ".epr") {
		return true
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return true
	}
	return false
}
