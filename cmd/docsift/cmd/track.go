package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/ui"
)

// track runs fn under a progress renderer and shows the completion summary
// when fn succeeds.
func (e *env) track(cmd *cobra.Command, fn func(ctx context.Context, r ui.Renderer, stats *ui.CompletionStats) error) error {
	r := e.renderer(cmd)
	if err := r.Start(cmd.Context()); err != nil {
		return err
	}
	defer func() { _ = r.Stop() }()

	start := time.Now()
	stats := ui.CompletionStats{}
	err := fn(cmd.Context(), r, &stats)
	stats.Duration = time.Since(start)
	for _, s := range stats.Stages {
		stats.Warnings += s.Failed
	}
	if err != nil {
		return err
	}
	r.Complete(stats)
	return nil
}
