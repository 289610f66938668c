package presets

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ItemType distinguishes presets from folders in the preset tree.
type ItemType int

const (
	ItemPreset ItemType = iota
	ItemFolder
)

func (t ItemType) String() string {
	if t == ItemPreset {
		return "preset"
	}
	return "folder"
}

// TreeItem is a node of the preset browser hierarchy.
type TreeItem struct {
	Name           string      `json:"name"`
	Type           ItemType    `json:"type"`
	TypeText       string      `json:"type_text,omitempty"`
	IsFolder       bool        `json:"is_folder"`
	IsExpanded     bool        `json:"is_expanded,omitempty"`
	FolderState    string      `json:"folder_state,omitempty"`
	ToolTipSummary string      `json:"tooltip,omitempty"`
	Comment        string      `json:"comment,omitempty"`
	TargetRate     string      `json:"target_rate,omitempty"`
	FPS            string      `json:"fps,omitempty"`
	FrameSize      string      `json:"frame_size,omitempty"`
	PresetType     string      `json:"preset_type,omitempty"`
	FolderZName    string      `json:"folder_z_name,omitempty"`
	FormatName     string      `json:"format_name,omitempty"`
	Path           string      `json:"path"`
	Preset         *Preset     `json:"preset,omitempty"`
	SubList        []*TreeItem `json:"sub_list,omitempty"`
}

// Tree is the parsed PresetTree.xml.
type Tree struct {
	All           map[string]*TreeItem
	AllNormalized map[string]*TreeItem
	UserPresets   []*TreeItem
	SystemPresets []*TreeItem
}

type treeListXML struct {
	Items []treeItemXML `xml:"PresetsUIItem"`
}

type treeItemXML struct {
	Name        string       `xml:"Name"`
	ItemType    string       `xml:"ItemType"`
	ToolTipSum  string       `xml:"ToolTipSum"`
	Comment     string       `xml:"Comment"`
	TRate       string       `xml:"TRate"`
	FPS         string       `xml:"FPS"`
	FSize       string       `xml:"FSize"`
	PresetType  string       `xml:"PresetType"`
	FolderZName string       `xml:"FolderZName"`
	FormatName  string       `xml:"FormatName"`
	FolderState string       `xml:"FolderState"`
	ProxyPreset *presetXML   `xml:"ProxyPreset"`
	SubList     *treeListXML `xml:"SubList"`
}

type treeDocument struct {
	XMLName       xml.Name     `xml:"PremiereData"`
	UserPresets   *treeListXML `xml:"UserPresets"`
	SystemPresets *treeListXML `xml:"SystemPresets"`
}

// LoadTree reads and parses a PresetTree.xml file.
func LoadTree(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset tree: %w", err)
	}
	return ParseTree(data)
}

// ParseTree parses PresetTree.xml content. Sibling items are sorted by name
// and only presets are entered into the registries.
func ParseTree(data []byte) (*Tree, error) {
	var doc treeDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		if strings.Contains(err.Error(), "expected element type") {
			return nil, errors.New("preset tree: expected <PremiereData> document element")
		}
		return nil, fmt.Errorf("parse preset tree: %w", err)
	}
	tree := &Tree{
		All:           make(map[string]*TreeItem),
		AllNormalized: make(map[string]*TreeItem),
	}
	sorter := collate.New(language.Und, collate.IgnoreCase)
	tree.UserPresets = tree.build(doc.UserPresets, "", sorter)
	tree.SystemPresets = tree.build(doc.SystemPresets, "", sorter)
	return tree, nil
}

func (t *Tree) build(list *treeListXML, parent string, sorter *collate.Collator) []*TreeItem {
	if list == nil || len(list.Items) == 0 {
		return nil
	}
	items := make([]*TreeItem, 0, len(list.Items))
	for _, node := range list.Items {
		item := &TreeItem{
			Name:           strings.TrimSpace(node.Name),
			TypeText:       strings.TrimSpace(node.ItemType),
			Type:           ItemFolder,
			ToolTipSummary: node.ToolTipSum,
			Comment:        node.Comment,
			TargetRate:     node.TRate,
			FPS:            node.FPS,
			FrameSize:      node.FSize,
			PresetType:     node.PresetType,
			FolderZName:    node.FolderZName,
			FormatName:     node.FormatName,
		}
		if item.TypeText == "0" {
			item.Type = ItemPreset
		} else {
			item.IsFolder = true
			item.FolderState = strings.TrimSpace(node.FolderState)
			item.IsExpanded = item.FolderState == "true"
		}
		if node.ProxyPreset != nil {
			item.Preset = node.ProxyPreset.preset()
		}
		item.Path = registryPath(parent, item.Name)
		if !item.IsFolder {
			t.All[item.Path] = item
			t.AllNormalized[NormalizeName(item.Path)] = item
		}
		item.SubList = t.build(node.SubList, item.Path, sorter)
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return sorter.CompareString(items[i].Name, items[j].Name) < 0
	})
	return items
}

// Lookup finds a preset item by tree path, exact first, then normalized.
func (t *Tree) Lookup(name string) (*TreeItem, bool) {
	if t == nil {
		return nil, false
	}
	if item, ok := t.All[name]; ok {
		return item, true
	}
	item, ok := t.AllNormalized[NormalizeName(name)]
	return item, ok
}

// Walk visits every item depth first, user presets before system presets.
func (t *Tree) Walk(fn func(item *TreeItem, depth int)) {
	if t == nil {
		return
	}
	var visit func(items []*TreeItem, depth int)
	visit = func(items []*TreeItem, depth int) {
		for _, item := range items {
			fn(item, depth)
			visit(item.SubList, depth+1)
		}
	}
	visit(t.UserPresets, 0)
	visit(t.SystemPresets, 0)
}
