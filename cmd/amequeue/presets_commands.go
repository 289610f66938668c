package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"amequeue/internal/config"
	"amequeue/internal/presets"
)

type catalogFlags struct {
	cache string
	tree  string
}

func (f *catalogFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.cache, "cache", "", "PresetCache.xml path (defaults to paths.preset_cache)")
	cmd.PersistentFlags().StringVar(&f.tree, "tree", "", "PresetTree.xml path (defaults to paths.preset_tree)")
}

func (f *catalogFlags) paths(cfg *config.Config) (string, string, error) {
	cache, tree := cfg.Paths.PresetCache, cfg.Paths.PresetTree
	var err error
	if strings.TrimSpace(f.cache) != "" {
		if cache, err = config.ExpandPath(strings.TrimSpace(f.cache)); err != nil {
			return "", "", err
		}
	}
	if strings.TrimSpace(f.tree) != "" {
		if tree, err = config.ExpandPath(strings.TrimSpace(f.tree)); err != nil {
			return "", "", err
		}
	}
	return cache, tree, nil
}

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	var flags catalogFlags

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "Browse the encoder preset catalogs",
	}
	flags.register(presetsCmd)

	load := func(needCache, needTree bool) (*presets.Catalog, error) {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return nil, err
		}
		cache, tree, err := flags.paths(cfg)
		if err != nil {
			return nil, err
		}
		if needCache && cache == "" {
			return nil, errors.New("no preset cache configured; set paths.preset_cache or pass --cache")
		}
		if needTree && tree == "" {
			return nil, errors.New("no preset tree configured; set paths.preset_tree or pass --tree")
		}
		if !needCache {
			cache = ""
		}
		if !needTree {
			tree = ""
		}
		return presets.LoadCatalog(cache, tree)
	}

	presetsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List presets from the preset cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := load(true, false)
			if err != nil {
				return err
			}
			return printPresets(cmd, ctx, catalog.Cache.List)
		},
	})

	presetsCmd.AddCommand(&cobra.Command{
		Use:   "find <query>",
		Short: "Find presets whose folder and name contain query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := load(true, false)
			if err != nil {
				return err
			}
			matches := catalog.Find(strings.Join(args, " "))
			if len(matches) == 0 && !ctx.jsonOutput() {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching presets")
				return nil
			}
			return printPresets(cmd, ctx, matches)
		},
	})

	presetsCmd.AddCommand(&cobra.Command{
		Use:   "tree",
		Short: "Print the preset browser hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := load(false, true)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"user":   catalog.Tree.UserPresets,
					"system": catalog.Tree.SystemPresets,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderPresetTree(catalog.Tree))
			return nil
		},
	})

	return presetsCmd
}

func printPresets(cmd *cobra.Command, ctx *commandContext, list []*presets.Preset) error {
	if ctx.jsonOutput() {
		if list == nil {
			list = []*presets.Preset{}
		}
		return writeJSON(cmd, list)
	}
	rows := make([][]string, 0, len(list))
	for _, preset := range list {
		rows = append(rows, []string{preset.RegistryPath(), orDash(preset.FileType), preset.Path})
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, renderTable([]string{"Preset", "Type", "File"}, rows))
	fmt.Fprintln(out, pluralize(len(list), "preset"))
	return nil
}

func renderPresetTree(tree *presets.Tree) string {
	var b strings.Builder
	tree.Walk(func(item *presets.TreeItem, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(item.Name)
		if item.IsFolder {
			b.WriteString("/")
		} else if item.FormatName != "" {
			b.WriteString("  [" + item.FormatName + "]")
		}
		b.WriteString("\n")
	})
	return b.String()
}
