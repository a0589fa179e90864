// Package governance implements the pre-action governance analyzer: it
// classifies the activity a conversational message is about, decides
// whether that warrants surfacing engineering guidance, retrieves the
// relevant rule tokens from an injected RuleLoader, and accumulates
// per-token effectiveness metrics in the store.
//
//	eng := governance.New(ruleLoader, store, clock.New())
//	result, err := eng.Activate(ctx, "Let's build a REST API with authentication", nil, "p1")
package governance
