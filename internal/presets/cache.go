package presets

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Preset is one encoder preset file.
type Preset struct {
	ID                string `json:"id"`
	Path              string `json:"path"`
	FileType          string `json:"file_type,omitempty"`
	ClassID           string `json:"class_id,omitempty"`
	Name              string `json:"name"`
	ModifiedTime      string `json:"modified_time,omitempty"`
	FolderDisplayPath string `json:"folder_display_path,omitempty"`
	DisplayName       string `json:"display_name"`
}

// RegistryPath is the "folder/display name" key the preset is filed under.
func (p Preset) RegistryPath() string {
	return registryPath(p.FolderDisplayPath, p.DisplayName)
}

// Cache is the parsed PresetCache.xml.
type Cache struct {
	All           map[string]*Preset
	AllNormalized map[string]*Preset
	List          []*Preset
}

type presetXML struct {
	PresetID           *string `xml:"PresetID"`
	PresetPath         string  `xml:"PresetPath"`
	PresetFileType     string  `xml:"PresetFileType"`
	PresetClassID      string  `xml:"PresetClassID"`
	PresetName         string  `xml:"PresetName"`
	PresetModifiedTime string  `xml:"PresetModifiedTime"`
	FolderDisplayPath  string  `xml:"FolderDisplayPath"`
}

func (p presetXML) preset() *Preset {
	preset := &Preset{
		Path:              strings.TrimSpace(p.PresetPath),
		FileType:          strings.TrimSpace(p.PresetFileType),
		ClassID:           strings.TrimSpace(p.PresetClassID),
		Name:              strings.TrimSpace(p.PresetName),
		ModifiedTime:      strings.TrimSpace(p.PresetModifiedTime),
		FolderDisplayPath: strings.TrimSpace(p.FolderDisplayPath),
	}
	if p.PresetID != nil {
		preset.ID = strings.TrimSpace(*p.PresetID)
	}
	preset.DisplayName = displayName(preset.Path)
	return preset
}

type cacheKey struct {
	presetXML
	Keys          []cacheKey `xml:"Key"`
	DirectoryPath *string    `xml:"DirectoryPath"`
}

type cacheDocument struct {
	XMLName xml.Name   `xml:"PremiereData"`
	Keys    []cacheKey `xml:"Key"`
}

// LoadCache reads and parses a PresetCache.xml file.
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset cache: %w", err)
	}
	return ParseCache(data)
}

// ParseCache parses PresetCache.xml content. Keys that hold nested keys are
// walked recursively; leaf keys with a PresetID and no DirectoryPath are presets.
func ParseCache(data []byte) (*Cache, error) {
	var doc cacheDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		if strings.Contains(err.Error(), "expected element type") {
			return nil, errors.New("preset cache: expected <PremiereData> document element")
		}
		return nil, fmt.Errorf("parse preset cache: %w", err)
	}
	cache := &Cache{
		All:           make(map[string]*Preset),
		AllNormalized: make(map[string]*Preset),
	}
	cache.collect(doc.Keys)
	return cache, nil
}

func (c *Cache) collect(keys []cacheKey) {
	for _, key := range keys {
		if len(key.Keys) > 0 {
			c.collect(key.Keys)
			continue
		}
		if key.DirectoryPath != nil || key.PresetID == nil {
			continue
		}
		preset := key.preset()
		reg := preset.RegistryPath()
		c.List = append(c.List, preset)
		c.All[reg] = preset
		c.AllNormalized[NormalizeName(reg)] = preset
	}
}

// Lookup finds a preset by registry path, exact first, then normalized.
func (c *Cache) Lookup(name string) (*Preset, bool) {
	if c == nil {
		return nil, false
	}
	if preset, ok := c.All[name]; ok {
		return preset, true
	}
	preset, ok := c.AllNormalized[NormalizeName(name)]
	return preset, ok
}
