package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/livemd/internal/config"
	"github.com/conneroisu/livemd/internal/logging"
	"github.com/conneroisu/livemd/internal/pathmap"
	"github.com/conneroisu/livemd/internal/pipeline"
	"github.com/conneroisu/livemd/internal/render"
	"github.com/conneroisu/livemd/internal/store"
)

var buildCmd = &cobra.Command{
	Use:     "build [content-dir]",
	Aliases: []string{"b"},
	Short:   "Render all documents to the output directory",
	Long: `Render every markdown file under the content directory to static
HTML, copy assets alongside, and write the result to the output directory.

Examples:
  livemd build                     # Render ./doc into ./_dist
  livemd build -o public           # Render into ./public
  livemd build notes -o site       # Render ./notes into ./site`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("output", "o", config.DefaultOutputDir, "Output directory")
	viper.BindPFlag("output_dir", buildCmd.Flags().Lookup("output"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if len(args) > 0 {
		cfg.ContentDir = args[0]
	}

	logger := logging.NewLogger(&logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})

	mapper, err := pathmap.NewMapper(cfg.ContentDir)
	if err != nil {
		return fmt.Errorf("invalid content directory: %w", err)
	}

	st := store.New()
	discard := pipeline.PublisherFunc(func(pipeline.Reload) {})
	coordinator := pipeline.New(mapper, render.NewRenderer(mapper), st, discard, logger)

	if err := coordinator.RenderAll(); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if err := st.WriteTo(cfg.OutputDir); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Printf("Wrote %d files to %s\n", st.Len(), cfg.OutputDir)
	return nil
}
