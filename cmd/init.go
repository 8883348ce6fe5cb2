package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/livemd/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Scaffold a livemd project",
	Long: `Create a .livemd.yml configuration file and a starter content
directory with a README.

Examples:
  livemd init                     # Scaffold in the current directory
  livemd init mydocs              # Scaffold in ./mydocs`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

const starterDoc = `# Welcome

This directory is served by livemd. Edit this file and watch the browser
update.

- Markdown files render to HTML
- Relative links like [another page](guide.md) point at the rendered output
- README.md files become the index of their directory
`

func runInit(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	force, _ := cmd.Flags().GetBool("force")

	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}

	configPath := filepath.Join(target, ".livemd.yml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	cfg := config.Config{
		ContentDir: config.DefaultContentDir,
		OutputDir:  config.DefaultOutputDir,
		Server: config.ServerConfig{
			Port: config.DefaultPort,
			Host: config.DefaultHost,
			Open: true,
		},
		Watch: config.WatchConfig{Debounce: config.DefaultDebounce},
		Log:   config.LogConfig{Level: "info", Format: "text"},
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	header := "# livemd configuration\n" +
		"# Every key can be overridden with a LIVEMD_<SECTION>_<KEY> environment\n" +
		"# variable or the matching command-line flag.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}

	contentDir := filepath.Join(target, cfg.ContentDir)
	if err := os.MkdirAll(contentDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", contentDir, err)
	}

	readmePath := filepath.Join(contentDir, "README.md")
	if _, err := os.Stat(readmePath); os.IsNotExist(err) {
		if err := os.WriteFile(readmePath, []byte(starterDoc), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", readmePath, err)
		}
	}

	fmt.Printf("Created %s and %s\n", configPath, readmePath)
	fmt.Println("Run 'livemd serve' to start the preview server.")
	return nil
}
