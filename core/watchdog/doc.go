// Package watchdog periodically recovers tasks stuck in "in_progress"
// past a configured TTL, either requeuing or failing them. All loop
// parameters are re-read from the environment on every iteration so they
// can be changed without restarting the process.
//
//	w := watchdog.New(st, watchdog.WithLogger(log))
//	if err := w.Start(ctx); err != nil { ... }
//	defer w.Stop(ctx)
package watchdog
