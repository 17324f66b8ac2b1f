package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/capability"
	serr "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/preflight"
)

func newDoctorCmd(e *env) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the workspace and optional tools",
		Long: `Check that docsift can run in this workspace.

Required checks (failure exits non-zero):
  - configuration loads and validates
  - workspace directories are writable
  - at least 100 MB of free disk space

Reported with warnings only:
  - file descriptor limit
  - local OCR (tesseract), remote OCR (OCR.space), page renderer (pdftoppm)
  - embedder for the embedding clustering method`,
		Example: `  docsift doctor
  docsift doctor --verbose
  docsift doctor --json`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"setup": "skip"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, e, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show hints for failed checks")
	return cmd
}

// doctorReport is the JSON form of the checks.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(cmd *cobra.Command, e *env, verbose bool) error {
	checker := preflight.New(preflight.WithOutput(cmd.OutOrStdout()), preflight.WithVerbose(verbose))

	var results []preflight.CheckResult
	if err := e.setup(); err != nil {
		results = []preflight.CheckResult{{
			Name:     "config",
			Status:   preflight.StatusFail,
			Message:  serr.Reason(err),
			Required: true,
		}}
	} else {
		caps := capability.Detect(cmd.Context(), e.cfg, capability.Options{}, e.logger)
		defer func() { _ = caps.Close() }()
		results = checker.RunAll(cmd.Context(), e.cfg, caps)
		e.logger.Info("doctor complete", "status", checker.SummaryStatus(results))
	}

	if e.opts.json {
		if err := e.out(cmd).JSON(doctorReport{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return serr.New(serr.ErrCodeConfigInvalid, "doctor found critical problems", nil).
			WithSuggestion("Fix the failed checks above")
	}
	return nil
}
