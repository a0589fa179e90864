package governance

import (
	"regexp"
	"strings"
)

// ActivityType is one of the ten recognized kinds of engineering activity a
// message can be classified as, or Unknown when none match.
type ActivityType string

const (
	ActivityPlanning     ActivityType = "planning"
	ActivityCoding       ActivityType = "coding"
	ActivityArchitecture ActivityType = "architecture"
	ActivityRefactoring  ActivityType = "refactoring"
	ActivityTesting      ActivityType = "testing"
	ActivitySecurity     ActivityType = "security"
	ActivityPerformance  ActivityType = "performance"
	ActivityDatabase     ActivityType = "database"
	ActivityAPIDesign    ActivityType = "api_design"
	ActivityDeployment   ActivityType = "deployment"
	ActivityUnknown      ActivityType = "unknown"
)

const (
	perMatchScore         = 0.2
	maxActivityScore      = 1.0
	activationConfidence  = 0.3
	activationCutoff      = 0.10
)

// activityOrder fixes declaration order for argmax tie-breaking.
var activityOrder = []ActivityType{
	ActivityPlanning,
	ActivityCoding,
	ActivityArchitecture,
	ActivityRefactoring,
	ActivityTesting,
	ActivitySecurity,
	ActivityPerformance,
	ActivityDatabase,
	ActivityAPIDesign,
	ActivityDeployment,
}

var activityPatterns = map[ActivityType][]*regexp.Regexp{
	ActivityPlanning: compileAll(
		`\b(?:plan|planning|design|approach|strategy|outline)\b`,
		`\b(?:how to|let's|should we|going to)\b`,
		`\b(?:create|build|implement|develop)\b`,
		`\b(?:step by step|roadmap|timeline)\b`,
	),
	ActivityCoding: compileAll(
		`\b(?:code|coding|program|script|function|class|method)\b`,
		`\b(?:write|implement|create|build).*(?:code|function|class|api)\b`,
		`\b(?:python|javascript|java|go|rust|typescript|html|css)\b`,
		`\b(?:algorithm|logic|implementation)\b`,
	),
	ActivityArchitecture: compileAll(
		`\b(?:architecture|system design|microservices|monolith)\b`,
		`\b(?:database design|schema|data model)\b`,
		`\b(?:scalability|distributed|cloud)\b`,
		`\b(?:patterns|design patterns|architectural)\b`,
	),
	ActivityRefactoring: compileAll(
		`\b(?:refactor|refactoring|cleanup|optimize|improve)\b`,
		`\b(?:technical debt|code quality|maintainability)\b`,
		`\b(?:restructure|reorganize|simplify)\b`,
	),
	ActivityTesting: compileAll(
		`\b(?:test|testing|unit test|integration test|e2e)\b`,
		`\b(?:coverage|test cases|assertions)\b`,
		`\b(?:mock|stub|fixture)\b`,
	),
	ActivitySecurity: compileAll(
		`\b(?:security|authentication|authorization|encryption)\b`,
		`\b(?:vulnerability|threat|attack|exploit)\b`,
		`\b(?:oauth|jwt|ssl|tls|https)\b`,
	),
	ActivityPerformance: compileAll(
		`\b(?:performance|optimization|speed|latency|throughput)\b`,
		`\b(?:caching|memory|cpu|database query)\b`,
		`\b(?:bottleneck|profiling|benchmark)\b`,
	),
	ActivityDatabase: compileAll(
		`\b(?:database|sql|nosql|query|schema|migration)\b`,
		`\b(?:postgres|mysql|mongodb|redis)\b`,
		`\b(?:index|transaction|orm)\b`,
	),
	ActivityAPIDesign: compileAll(
		`\b(?:api|endpoint|rest|graphql|grpc)\b`,
		`\b(?:route|handler|controller|service)\b`,
		`\b(?:request|response|payload|json)\b`,
	),
	ActivityDeployment: compileAll(
		`\b(?:deploy|deployment|docker|kubernetes|ci/cd)\b`,
		`\b(?:production|staging|environment|infrastructure)\b`,
		`\b(?:pipeline|build|release)\b`,
	),
}

// domainMapping fixes the activity → rule-domain table from §6.
var domainMapping = map[ActivityType][]string{
	ActivityPlanning:     {"architecture", "ai-learning"},
	ActivityCoding:       {"code-quality", "security", "performance"},
	ActivityArchitecture: {"architecture", "performance", "reliability"},
	ActivityRefactoring:  {"code-quality", "performance", "reliability"},
	ActivityTesting:      {"testing", "reliability"},
	ActivitySecurity:     {"security", "reliability"},
	ActivityPerformance:  {"performance", "architecture"},
	ActivityDatabase:     {"data", "performance", "security"},
	ActivityAPIDesign:    {"architecture", "security", "performance"},
	ActivityDeployment:   {"reliability", "security", "performance"},
}

// highImpactKeywords bypasses the confidence threshold when present.
var highImpactKeywords = map[string]bool{
	"security": true, "authentication": true, "database": true, "production": true,
	"deploy": true, "performance": true, "architecture": true, "api": true,
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}

// Context is the result of classifying a message plus recent history.
type Context struct {
	Activity         ActivityType
	Confidence       float64
	DetectedKeywords []string
	RelevantDomains  []string
}

// analyze concatenates up to the last 3 history entries with message and
// scores each ActivityType by its matched patterns.
func analyze(message string, history []string) Context {
	full := message
	if len(history) > 0 {
		start := 0
		if len(history) > 3 {
			start = len(history) - 3
		}
		recent := append(append([]string{}, history[start:]...), message)
		full = strings.Join(recent, " ")
	}

	scores := make(map[ActivityType]float64)
	keywordSet := make(map[string]bool)

	for _, activity := range activityOrder {
		var score float64
		for _, pattern := range activityPatterns[activity] {
			matches := pattern.FindAllString(full, -1)
			if len(matches) == 0 {
				continue
			}
			score += float64(len(matches)) * perMatchScore
			for _, m := range matches {
				keywordSet[strings.ToLower(strings.TrimSpace(m))] = true
			}
		}
		if score > 0 {
			if score > maxActivityScore {
				score = maxActivityScore
			}
			scores[activity] = score
		}
	}

	primary := ActivityUnknown
	var confidence float64
	for _, activity := range activityOrder {
		if s, ok := scores[activity]; ok && s > confidence {
			primary = activity
			confidence = s
		}
	}

	keywords := make([]string, 0, len(keywordSet))
	for k := range keywordSet {
		keywords = append(keywords, k)
	}

	return Context{
		Activity:         primary,
		Confidence:       confidence,
		DetectedKeywords: keywords,
		RelevantDomains:  domainMapping[primary],
	}
}

// shouldActivate applies the activation decision from §4.5 step 2, and the
// outer cutoff from step 2's final sentence.
func shouldActivate(c Context) bool {
	if c.Confidence < activationCutoff {
		return false
	}
	if c.Confidence >= activationConfidence && c.Activity != ActivityUnknown {
		return true
	}
	for _, k := range c.DetectedKeywords {
		if highImpactKeywords[k] {
			return true
		}
	}
	return false
}
