package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/fim/internal/config"
	"github.com/Mschirtzinger/fim/internal/ui"
)

var configCmd = &cobra.Command{
	Use:         "config",
	GroupID:     "maintenance",
	Short:       "Manage the configuration file",
	Annotations: map[string]string{skipConfig: "true"},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration template",
	Long: `Write a configuration file with every key set to its default. Targets and
the backup root are placeholders to edit before running 'fim baseline'.`,
	Annotations: map[string]string{skipConfig: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		force, _ := cmd.Flags().GetBool("force")

		path, err := writeConfigTemplate(format, output, force)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
	},
}

func writeConfigTemplate(format, output string, force bool) (string, error) {
	format = strings.ToLower(format)
	if output == "" {
		output = "fim." + format
	}
	if !force {
		if _, err := os.Stat(output); err == nil {
			return "", fmt.Errorf("%s already exists (use --force to overwrite)", output)
		}
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	f, err := os.Create(output)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", output, err)
	}
	if err := config.WriteTemplate(f, format, nil); err != nil {
		_ = f.Close()
		_ = os.Remove(output)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", output, err)
	}
	return output, nil
}

func init() {
	configInitCmd.Flags().String("format", config.FormatYAML, "file format (yaml or toml)")
	configInitCmd.Flags().StringP("output", "o", "", "output path (default: fim.<format>)")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
