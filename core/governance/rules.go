package governance

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Priority ranks how forcefully a Rule's guidance should be surfaced.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rule is one piece of engineering guidance scoped to a domain. Source
// names the domain file it was loaded from (fallback rules set it to
// "fallback"), carried for debugging per the original engine's attribution.
type Rule struct {
	Domain      string
	Name        string
	Description string
	Category    string
	Triggers    []string
	Priority    Priority
	Source      string
}

// RuleLoader resolves the rule tokens registered for a domain. Production
// callers back this with the on-disk token store; tests substitute a fixed
// map.
type RuleLoader interface {
	LoadDomain(ctx context.Context, domain string) ([]Rule, error)
}

// FileRuleLoader loads YAML-encoded rule files from a directory, one file
// per domain named "<domain>.yaml", with a TTL cache invalidated by source
// mtime.
type FileRuleLoader struct {
	dir string
	ttl time.Duration

	mu       sync.Mutex
	cache    map[string][]Rule
	cachedAt map[string]time.Time
	mtime    map[string]time.Time
}

// NewFileRuleLoader constructs a loader rooted at dir, caching each domain's
// parsed rules for ttl before re-checking the source file's mtime.
func NewFileRuleLoader(dir string, ttl time.Duration) *FileRuleLoader {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &FileRuleLoader{
		dir:      dir,
		ttl:      ttl,
		cache:    make(map[string][]Rule),
		cachedAt: make(map[string]time.Time),
		mtime:    make(map[string]time.Time),
	}
}

func (l *FileRuleLoader) LoadDomain(_ context.Context, domain string) ([]Rule, error) {
	path := l.dir + "/" + domain + ".yaml"

	info, statErr := os.Stat(path)

	l.mu.Lock()
	if statErr == nil {
		if cached, ok := l.cache[domain]; ok {
			fresh := time.Since(l.cachedAt[domain]) < l.ttl
			unchanged := l.mtime[domain].Equal(info.ModTime())
			if fresh && unchanged {
				l.mu.Unlock()
				return cached, nil
			}
		}
	}
	l.mu.Unlock()

	if statErr != nil {
		return nil, statErr
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rules []Rule
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[domain] = rules
	l.cachedAt[domain] = time.Now()
	l.mtime[domain] = info.ModTime()
	l.mu.Unlock()

	return rules, nil
}

// fallbackRules covers the domains a FileRuleLoader can fail to serve,
// grounded on the hardcoded fallback tables of the original engine.
var fallbackRules = map[string][]Rule{
	"security": {
		{Domain: "security", Name: "input-validation", Category: "security", Description: "Validate and sanitize all external input before use", Triggers: []string{"input", "validation", "injection"}, Priority: PriorityCritical, Source: "fallback"},
		{Domain: "security", Name: "least-privilege", Category: "security", Description: "Grant the minimum permissions required for a task", Triggers: []string{"authorization", "permissions", "access"}, Priority: PriorityCritical, Source: "fallback"},
		{Domain: "security", Name: "secrets-management", Category: "security", Description: "Never hardcode credentials; load secrets from a vault or environment", Triggers: []string{"credentials", "secrets", "api key"}, Priority: PriorityHigh, Source: "fallback"},
	},
	"performance": {
		{Domain: "performance", Name: "avoid-n-plus-one", Category: "performance", Description: "Batch or join queries instead of looping per-record fetches", Triggers: []string{"query", "loop", "database"}, Priority: PriorityHigh, Source: "fallback"},
		{Domain: "performance", Name: "cache-hot-paths", Category: "performance", Description: "Cache results of expensive, frequently repeated computations", Triggers: []string{"cache", "latency", "repeated"}, Priority: PriorityMedium, Source: "fallback"},
	},
	"code-quality": {
		{Domain: "code-quality", Name: "single-responsibility", Category: "code-quality", Description: "Keep functions and types focused on one concern", Triggers: []string{"refactor", "responsibility", "coupling"}, Priority: PriorityMedium, Source: "fallback"},
		{Domain: "code-quality", Name: "test-coverage", Category: "code-quality", Description: "Cover new logic with tests before considering it done", Triggers: []string{"test", "coverage", "regression"}, Priority: PriorityMedium, Source: "fallback"},
	},
}

// fallbackRulesFor returns the fallback set for domain, or nil.
func fallbackRulesFor(domain string) []Rule {
	return fallbackRules[domain]
}

// loadRulesForDomains loads each domain via loader, falling back to the
// static table on error, and caps the combined result to 10 rules.
func loadRulesForDomains(ctx context.Context, loader RuleLoader, domains []string) []Rule {
	var rules []Rule
	for _, domain := range domains {
		loaded, err := loader.LoadDomain(ctx, domain)
		if err != nil || len(loaded) == 0 {
			loaded = fallbackRulesFor(domain)
		}
		rules = append(rules, loaded...)
		if len(rules) >= 10 {
			break
		}
	}
	if len(rules) > 10 {
		rules = rules[:10]
	}
	return rules
}

// determinePriority ranks r by keyword match against its name and
// description, escalating to high when ruleCount (the size of the rule
// list r came from) exceeds 5, or when it exceeds 2 and no keyword
// matched.
func determinePriority(r Rule, ruleCount int) Priority {
	if r.Priority != "" {
		return r.Priority
	}

	text := strings.ToLower(r.Name + " " + r.Description)
	for _, kw := range []string{"security", "authentication", "authorization", "vulnerability", "exploit"} {
		if strings.Contains(text, kw) {
			return PriorityCritical
		}
	}
	for _, kw := range []string{"performance", "scalability", "reliability", "data integrity", "solid"} {
		if strings.Contains(text, kw) {
			return PriorityHigh
		}
	}
	if ruleCount > 5 {
		return PriorityHigh
	}
	if ruleCount > 2 {
		return PriorityHigh
	}
	return PriorityMedium
}

// priorityWeight feeds the governance token effectiveness sample.
func priorityWeight(p Priority) float64 {
	switch p {
	case PriorityCritical:
		return 1.0
	case PriorityHigh:
		return 0.85
	case PriorityMedium:
		return 0.65
	case PriorityLow:
		return 0.5
	default:
		return 0.6
	}
}
