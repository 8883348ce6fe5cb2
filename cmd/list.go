package cmd

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/livemd/internal/config"
	"github.com/conneroisu/livemd/internal/pathmap"
	"github.com/conneroisu/livemd/internal/render"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List discovered markdown documents",
	Long: `List every markdown document under the content directory with its
title and the output path it will be served at.

Examples:
  livemd list                     # List documents in table format
  livemd list notes               # List documents under ./notes
  livemd list -f json             # Output as JSON
  livemd list --format yaml       # Output as YAML`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "Output format (table, json, yaml)")
}

// documentInfo describes one discovered markdown source.
type documentInfo struct {
	Source string `json:"source" yaml:"source"`
	Output string `json:"output" yaml:"output"`
	Title  string `json:"title" yaml:"title"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if len(args) > 0 {
		cfg.ContentDir = args[0]
	}

	mapper, err := pathmap.NewMapper(cfg.ContentDir)
	if err != nil {
		return fmt.Errorf("invalid content directory: %w", err)
	}
	renderer := render.NewRenderer(mapper)

	var docs []documentInfo
	err = filepath.WalkDir(cfg.ContentDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != cfg.ContentDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !pathmap.IsMarkdown(path) {
			return nil
		}

		rel, relErr := mapper.Rel(path)
		if relErr != nil {
			return nil
		}
		output, outErr := mapper.ToOutput(rel)
		if outErr != nil {
			return nil
		}

		docs = append(docs, documentInfo{
			Source: rel,
			Output: output,
			Title:  renderer.Title(rel),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning %s: %w", cfg.ContentDir, err)
	}

	if len(docs) == 0 {
		fmt.Println("No documents found.")
		return nil
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })

	switch strings.ToLower(listFormat) {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(docs)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(docs)
	case "table":
		return outputTable(docs)
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", listFormat)
	}
}

func outputTable(docs []documentInfo) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tOUTPUT\tTITLE")
	for _, doc := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", doc.Source, doc.Output, doc.Title)
	}
	return w.Flush()
}
