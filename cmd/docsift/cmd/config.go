package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/docsift/internal/config"
	serr "github.com/Aman-CERP/docsift/internal/errors"
)

func newConfigCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage docsift configuration.

Precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/docsift/config.yaml)
  3. Project config (.docsift.yaml in the workspace)
  4. Workspace .env file
  5. DOCSIFT_* environment variables (e.g. DOCSIFT_OCR_API_KEY, DOCSIFT_GROUP_MAX_K)
  6. Command-line flags`,
		Example: `  docsift config init
  docsift config init --user
  docsift config show --json`,
	}
	cmd.AddCommand(newConfigInitCmd(e), newConfigShowCmd(e), newConfigPathCmd(e))
	return cmd
}

func newConfigInitCmd(e *env) *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default values",
		Long: `Write the default configuration to .docsift.yaml in the workspace, or to the
user config file with --user. An existing file is kept unless --force is
given, in which case it is backed up first.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"setup": "skip"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath(e, user)
			if err != nil {
				return err
			}
			return runConfigInit(cmd, e, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")
	return cmd
}

// configPath returns the project or user config file for the workspace.
func configPath(e *env, user bool) (string, error) {
	if user {
		return config.GetUserConfigPath(), nil
	}
	dir := e.opts.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", serr.IOError("cannot determine working directory", err)
		}
		dir = wd
	}
	return filepath.Join(dir, config.ProjectConfigFile), nil
}

func runConfigInit(cmd *cobra.Command, e *env, path string, force bool) error {
	out := e.out(cmd)

	if _, err := os.Stat(path); err == nil {
		if !force {
			return serr.New(serr.ErrCodeConfigInvalid, "configuration already exists: "+path, nil).
				WithSuggestion("Use --force to overwrite it")
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return serr.IOError("cannot back up configuration", err)
		}
		out.Statusf("", "backup: %s", backup)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return serr.New(serr.ErrCodeFileWrite, "cannot create config directory", err)
	}
	if err := config.NewConfig().WriteYAML(path); err != nil {
		return serr.New(serr.ErrCodeFileWrite, "cannot write configuration", err)
	}
	out.Successf("Wrote %s", path)
	return nil
}

func newConfigShowCmd(e *env) *cobra.Command {
	var defaults bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  `Print the configuration after merging every source, with paths resolved against the workspace. The OCR API key is masked.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *e.cfg
			if defaults {
				cfg = *config.NewConfig()
			}
			if cfg.OCR.APIKey != "" {
				cfg.OCR.APIKey = "********"
			}
			if e.opts.json {
				return e.out(cmd).JSON(cfg)
			}
			data, err := yaml.Marshal(&cfg)
			if err != nil {
				return serr.InternalError("cannot encode configuration", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&defaults, "defaults", false, "Print the built-in defaults instead")
	return cmd
}

func newConfigPathCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the project and user config file paths",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"setup": "skip"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			project, err := configPath(e, false)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "project: %s\nuser:    %s\n", project, config.GetUserConfigPath())
			return err
		},
	}
}
