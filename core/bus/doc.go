// Package bus implements an in-process, typed publish/subscribe bus with
// per-type handler ordering, isolated handler errors, and monotonically
// increasing per-type counters.
//
// Bus dispatches synchronously: Publish walks a snapshot of the subscribed
// handlers in registration order, awaiting each one before calling the
// next, and never fails itself even when handlers do.
//
//	b := bus.New(bus.WithLogger(log))
//	b.Subscribe("conversation.message", bus.NewHandlerFunc("orchestrator", func(ctx context.Context, e bus.Event) error {
//		return nil
//	}))
//	b.Publish(ctx, bus.Event{Type: "conversation.message", ProjectID: "p1"})
package bus
