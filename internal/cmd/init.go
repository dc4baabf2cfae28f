package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/InstaWP/iwp-mu/internal/config"
	"github.com/InstaWP/iwp-mu/internal/interactive"
	"github.com/InstaWP/iwp-mu/internal/templates"
)

func newInitCmd() *cobra.Command {
	var templateName string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new config file from a template",
		Long: `Create a new iwp-mu config file from a built-in template.

Available templates:
  minimal    - Required keys only
  standard   - Source, install directory, schedule, and logging
  full       - Every key with its default

${VAR} and ${VAR:-default} references in the template are resolved from
the environment before the file is written, so IWP_MU_PLUGIN_DIR,
IWP_MU_SITE_URL, and IWP_MU_DATABASE can seed the new config.

Examples:
  iwp-mu init
  iwp-mu init --template=full
  iwp-mu init --config /etc/iwp-mu/iwp-mu.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), templateName, configPath, force)
		},
	}

	cmd.Flags().StringVarP(&templateName, "template", "t", templates.DefaultTemplate, "Template name")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, name := range templates.List() {
			completions = append(completions, fmt.Sprintf("%s\t%s", name, templates.GetDescription(name)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit writes the expanded template to outputPath, or to the default
// config location when outputPath is empty.
func runInit(stdin io.Reader, stdout, stderr io.Writer, templateName, outputPath string, force bool) error {
	if outputPath == "" {
		path, err := config.DefaultPath()
		if err != nil {
			return err
		}
		outputPath = path
	}
	outputPath = expandHomePath(outputPath)

	if _, err := os.Stat(outputPath); err == nil && !force {
		_, _ = fmt.Fprintf(stderr, "Config already exists at %s\n", outputPath)
		if !interactive.NewPrompterWithIO(stdin, stdout).Confirm("Overwrite?") {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	tmpl, err := templates.GetExpanded(templateName)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	if err := validateTemplateContent(tmpl.Content); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	parentDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", parentDir, err)
	}

	if err := os.WriteFile(outputPath, tmpl.Content, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "Created %s from the '%s' template\n", outputPath, tmpl.Name)
	_, _ = fmt.Fprintln(stdout, "\nNext steps:")
	_, _ = fmt.Fprintln(stdout, "  1. Check plugin_dir and site_url")
	_, _ = fmt.Fprintln(stdout, "  2. Run 'iwp-mu check' to compare against the repository")
	_, _ = fmt.Fprintln(stdout, "  3. Schedule 'iwp-mu hook page-load' or 'iwp-mu check' from cron")

	return nil
}

// validateTemplateContent runs content through config.Load, which needs a
// path with an extension to pick the parser.
func validateTemplateContent(content []byte) error {
	tmpFile, err := os.CreateTemp("", "iwp-mu-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmpFile.Write(content); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	_, err = config.Load(tmpName)
	return err
}

// expandHomePath expands ~ to the user's home directory.
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
