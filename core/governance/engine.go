package governance

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/infinri/neural-forge/core/store"
	"github.com/infinri/neural-forge/pkg/clock"
)

const overlapBoostPerMatch = 0.05
const overlapBoostCap = 0.15

// Result is what Activate returns when governance guidance fires.
type Result struct {
	Activity   ActivityType
	Confidence float64
	Rules      []Rule
	TokenRefs  []string
	Guidance   string
}

// Engine classifies messages, retrieves rules, and records token
// effectiveness metrics.
type Engine struct {
	rules  RuleLoader
	store  store.Store
	clock  clock.Clock
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger used to report swallowed metric-recording
// failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New constructs an Engine. rules and st must both be non-nil.
func New(rules RuleLoader, st store.Store, clk clock.Clock, opts ...Option) *Engine {
	e := &Engine{
		rules:  rules,
		store:  st,
		clock:  clk,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Activate classifies message against history, decides whether guidance
// should surface, and if so retrieves rules and records a token
// effectiveness sample per matched rule. It returns (nil, nil) when
// governance does not activate for this message.
func (e *Engine) Activate(ctx context.Context, message string, history []string, projectID string) (*Result, error) {
	return e.activate(ctx, message, history, projectID, false)
}

// ActivateForced runs the same classification and rule retrieval as
// Activate but skips the activation decision, always returning a Result.
// Used by the activate_governance tool's force_activation input.
func (e *Engine) ActivateForced(ctx context.Context, message string, history []string, projectID string) (*Result, error) {
	return e.activate(ctx, message, history, projectID, true)
}

func (e *Engine) activate(ctx context.Context, message string, history []string, projectID string, forced bool) (*Result, error) {
	if e.rules == nil {
		return nil, ErrRuleLoaderRequired
	}
	if e.store == nil {
		return nil, ErrStoreRequired
	}

	ctxResult := analyze(message, history)
	if !forced && !shouldActivate(ctxResult) {
		return nil, nil
	}

	rules := loadRulesForDomains(ctx, e.rules, ctxResult.RelevantDomains)
	tokenRefs := make([]string, 0, len(rules))
	for _, r := range rules {
		ref := tokenRef(r)
		tokenRefs = append(tokenRefs, ref)

		sample := tokenSample(ctxResult, r, len(rules))
		if _, err := e.store.RecordGovernanceTokenMetric(ctx, ref, projectID, sample, e.clock.Now()); err != nil {
			e.logger.WarnContext(ctx, "governance: failed to record token metric",
				slog.String("token_ref", ref), slog.Any("error", err))
		}
	}

	return &Result{
		Activity:   ctxResult.Activity,
		Confidence: ctxResult.Confidence,
		Rules:      rules,
		TokenRefs:  tokenRefs,
		Guidance:   formatGuidance(ctxResult, rules),
	}, nil
}

// tokenRef identifies a rule token as "<domain>::<name>".
func tokenRef(r Rule) string {
	return r.Domain + "::" + r.Name
}

// tokenSample computes the per-activation effectiveness sample fed into
// RecordGovernanceTokenMetric's streaming mean.
func tokenSample(c Context, r Rule, ruleCount int) float64 {
	weight := priorityWeight(determinePriority(r, ruleCount))

	overlap := 0
	for _, trigger := range r.Triggers {
		for _, kw := range c.DetectedKeywords {
			if strings.EqualFold(trigger, kw) {
				overlap++
				break
			}
		}
	}
	boost := math.Min(overlapBoostPerMatch*float64(overlap), overlapBoostCap)

	sample := c.Confidence * weight * (1 + boost)
	if sample < 0 {
		sample = 0
	}
	if sample > 1 {
		sample = 1
	}
	return sample
}

// formatGuidance renders the surfaced guidance block: detected activity,
// confidence, a summary line, key principles from the highest-priority
// rules, and warnings.
func formatGuidance(c Context, rules []Rule) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Detected activity: %s (%.0f%% confidence)\n", c.Activity, c.Confidence*100)
	b.WriteString(summaryLine(c, rules))
	b.WriteString("\n")

	principles := keyPrinciples(rules)
	if len(principles) > 0 {
		b.WriteString("Key principles:\n")
		for _, p := range principles {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	warnings := warningsFor(c, rules)
	for _, w := range warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}

	return strings.TrimRight(b.String(), "\n")
}

func summaryLine(c Context, rules []Rule) string {
	if len(rules) == 0 {
		return fmt.Sprintf("For %s activities, no established guidance was found; proceed with standard diligence.", c.Activity)
	}
	critical, high := countByPriority(rules)
	return fmt.Sprintf("For %s activities, %d relevant governance rule(s) apply; %d critical, %d high.",
		c.Activity, len(rules), critical, high)
}

func countByPriority(rules []Rule) (critical, high int) {
	for _, r := range rules {
		switch determinePriority(r, len(rules)) {
		case PriorityCritical:
			critical++
		case PriorityHigh:
			high++
		}
	}
	return critical, high
}

func keyPrinciples(rules []Rule) []string {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return priorityRank(determinePriority(sorted[i], len(rules))) > priorityRank(determinePriority(sorted[j], len(rules)))
	})

	var out []string
	for _, r := range sorted {
		p := determinePriority(r, len(rules))
		if p != PriorityCritical && p != PriorityHigh {
			continue
		}
		out = append(out, r.Description)
		if len(out) == 5 {
			break
		}
	}
	return out
}

func priorityRank(p Priority) int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

func warningsFor(c Context, rules []Rule) []string {
	var warnings []string
	switch c.Activity {
	case ActivitySecurity:
		warnings = append(warnings, "Security-sensitive change: review authentication and authorization paths before merging.")
	case ActivityDatabase:
		warnings = append(warnings, "Database change: verify migrations and query plans before deploying.")
	case ActivityAPIDesign:
		warnings = append(warnings, "API change: confirm backward compatibility for existing consumers.")
	}

	critical, _ := countByPriority(rules)
	if critical >= 1 {
		warnings = append(warnings, "At least one critical rule applies; address it before lower-priority items.")
	}
	return warnings
}
