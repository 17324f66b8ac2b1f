// Package preflight runs the environment checks reported by "docsift doctor":
// free disk space, writable workspace directories, the open-file limit,
// configuration validity and the resolved capability set.
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, cfg, caps)
//	checker.PrintResults(results)
package preflight
