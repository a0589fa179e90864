// Package dispatch implements the tool envelope contract: bearer-auth
// gating, a registry of named tool handlers, and the stable error
// taxonomy every handler result is mapped onto.
//
//	reg := dispatch.NewRegistry(st, b, eng, dispatch.WithLogger(log))
//	envelope := reg.Dispatch(ctx, "add_memory", map[string]any{"projectId": "p1", "content": "note"})
package dispatch
