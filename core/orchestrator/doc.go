// Package orchestrator owns the bus subscription that turns
// "conversation.message" events into governance guidance. It keeps a
// bounded per-project message history, runs an idle-TTL sweep so the
// history map cannot grow without bound, and optionally drives a task
// watchdog loop.
//
//	o := orchestrator.New(b, engine, orchestrator.WithLogger(log))
//	if err := o.Start(ctx); err != nil { ... }
//	defer o.Stop(ctx)
package orchestrator
