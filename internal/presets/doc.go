// Package presets reads Media Encoder's preset catalogs so jobs can name a
// preset instead of spelling out its .epr path.
//
// Two catalog files exist. PresetCache.xml is a flat index of every preset
// the encoder knows, keyed by folder display path. PresetTree.xml mirrors the
// preset browser's folder hierarchy for user and system presets. Both are
// exposed as registries keyed by "folder/display name" plus a normalized
// variant for forgiving lookups.
package presets
