package presets

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeName folds case and collapses whitespace runs so that
// "System Presets/H.264  Match Source" and "system presets/h.264 match source"
// compare equal.
func NormalizeName(name string) string {
	folded := folder.String(norm.NFC.String(name))
	return strings.Join(strings.Fields(folded), " ")
}

// displayName returns the Windows-style base name of path without its extension.
func displayName(path string) string {
	base := path
	if idx := strings.LastIndexAny(base, `\/`); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	return base
}

// registryPath joins a folder display path and a name with forward slashes.
func registryPath(parent, name string) string {
	parent = strings.Trim(strings.ReplaceAll(parent, `\`, "/"), "/")
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
