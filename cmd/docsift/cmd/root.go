// Package cmd provides the docsift CLI commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/config"
	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/logging"
	"github.com/Aman-CERP/docsift/internal/manifest"
	"github.com/Aman-CERP/docsift/internal/output"
	"github.com/Aman-CERP/docsift/internal/ui"
	"github.com/Aman-CERP/docsift/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	dir      string
	json     bool
	debug    bool
	logLevel string
	noTUI    bool
}

// env is the per-invocation state built by the root command before any
// subcommand runs: the workspace configuration and the logger handed to
// every component.
type env struct {
	opts    globalOptions
	dir     string
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// setup loads configuration for the workspace and opens the log.
func (e *env) setup() error {
	dir := e.opts.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return serr.IOError("cannot determine working directory", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return serr.IOError("invalid workspace directory", err)
	}
	e.dir = abs

	cfg, err := config.Load(abs)
	if err != nil {
		return serr.New(serr.ErrCodeConfigInvalid, "failed to load configuration", err).
			WithSuggestion("Run 'docsift config show' or fix " + config.ProjectConfigFile)
	}
	if e.opts.logLevel != "" {
		cfg.Logging.Level = e.opts.logLevel
		if err := cfg.Validate(); err != nil {
			return serr.New(serr.ErrCodeConfigInvalid, err.Error(), nil)
		}
	}
	cfg.Resolve(abs)
	e.cfg = cfg

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: e.opts.debug,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	if e.opts.debug {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return serr.IOError("failed to set up logging", err)
	}
	e.logger = logger
	e.cleanup = cleanup
	logger.Debug("workspace loaded", "dir", abs, "version", version.Short())
	return nil
}

func (e *env) close() {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}

// out returns a status writer for cmd's stdout.
func (e *env) out(cmd *cobra.Command) *output.Writer {
	w := cmd.OutOrStdout()
	return output.New(w, output.WithColor(ui.IsTTY(w) && !ui.DetectNoColor()))
}

// renderer returns the progress renderer for a long-running command. JSON
// output always gets a silent renderer so stdout stays machine readable.
func (e *env) renderer(cmd *cobra.Command) ui.Renderer {
	w := cmd.ErrOrStderr()
	if e.opts.json {
		w = io.Discard
	}
	return ui.NewRenderer(ui.NewConfig(w,
		ui.WithForcePlain(e.opts.noTUI || e.opts.json),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithWorkspace(e.dir),
	))
}

// manifestOptions maps the configured column aliases onto the manifest parser.
func (e *env) manifestOptions(requireAttachments bool) manifest.Options {
	cols := e.cfg.Manifest.Columns
	return manifest.Options{
		Columns: manifest.Columns{
			DocumentID:   cols.DocumentID,
			Attachments:  cols.Attachments,
			Organization: cols.Organization,
			Category:     cols.Category,
			Comment:      cols.Comment,
		},
		URLSeparator:       e.cfg.Manifest.URLSeparator,
		RequireAttachments: requireAttachments,
	}
}

// idMatcher compiles the configured document id pattern.
func (e *env) idMatcher() (*manifest.IDMatcher, error) {
	ids, err := manifest.NewIDMatcher(e.cfg.Extract.IDPattern)
	if err != nil {
		return nil, serr.New(serr.ErrCodeConfigInvalid, "invalid extract.id_pattern", err)
	}
	return ids, nil
}

// NewRootCmd creates the docsift command tree.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *env) {
	e := &env{}

	cmd := &cobra.Command{
		Use:   "docsift",
		Short: "Acquire, extract, index and group public-comment documents",
		Long: `docsift turns a manifest of public-comment attachments into a searchable,
topic-grouped corpus:

  acquire   download every attachment listed in the manifest
  extract   convert PDF and DOCX files to text, with OCR for scanned pages
  index     build a full-text index over the extracted text
  search    query the index
  group     cluster the corpus and write CSV/JSON reports
  run       all of the above in one go

Configuration comes from .docsift.yaml in the workspace, ~/.config/docsift/config.yaml,
a workspace .env file and DOCSIFT_* environment variables.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipsSetup(cmd) {
				return nil
			}
			return e.setup()
		},
	}
	cmd.SetVersionTemplate("docsift version {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&e.opts.dir, "dir", "C", "", "Workspace directory (default: current directory)")
	pf.BoolVar(&e.opts.json, "json", false, "Write machine-readable JSON to stdout")
	pf.BoolVar(&e.opts.debug, "debug", false, "Log at debug level and tee the log to stderr")
	pf.StringVar(&e.opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&e.opts.noTUI, "no-tui", false, "Plain progress output even on a terminal")

	cmd.AddCommand(
		newAcquireCmd(e),
		newExtractCmd(e),
		newIndexCmd(e),
		newSearchCmd(e),
		newGroupCmd(e),
		newRunCmd(e),
		newDoctorCmd(e),
		newConfigCmd(e),
		newVersionCmd(e),
	)
	return cmd, e
}

// skipsSetup reports commands that must work without a loadable workspace.
func skipsSetup(cmd *cobra.Command) bool {
	return cmd.Annotations["setup"] == "skip"
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, e := newRoot()
	defer e.close()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	jsonOut, _ := root.PersistentFlags().GetBool("json")
	printError(root.ErrOrStderr(), err, jsonOut)
	return 1
}

func printError(w io.Writer, err error, jsonOut bool) {
	if jsonOut {
		if data, jerr := serr.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(w, string(data))
			return
		}
	}
	_, _ = fmt.Fprint(w, serr.FormatForCLI(err))
}
