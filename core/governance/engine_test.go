package governance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinri/neural-forge/core/store"
	"github.com/infinri/neural-forge/pkg/clock"
)

type staticRuleLoader map[string][]Rule

func (l staticRuleLoader) LoadDomain(_ context.Context, domain string) ([]Rule, error) {
	return l[domain], nil
}

func TestAnalyze_ClassifiesAPISecurityMessage(t *testing.T) {
	ctx := analyze("Let's build a REST API with authentication", nil)

	assert.True(t, ctx.Confidence > 0)
	assert.Contains(t, []ActivityType{ActivityAPIDesign, ActivitySecurity, ActivityPlanning}, ctx.Activity)
}

func TestAnalyze_UnrelatedMessageStaysUnknown(t *testing.T) {
	ctx := analyze("good morning, how are you today", nil)

	assert.Equal(t, ActivityUnknown, ctx.Activity)
	assert.Equal(t, 0.0, ctx.Confidence)
}

func TestShouldActivate_BelowCutoffNeverActivates(t *testing.T) {
	assert.False(t, shouldActivate(Context{Activity: ActivityCoding, Confidence: 0.05}))
}

func TestShouldActivate_HighConfidenceActivates(t *testing.T) {
	assert.True(t, shouldActivate(Context{Activity: ActivityCoding, Confidence: 0.4}))
}

func TestShouldActivate_UnknownActivityNeverActivatesOnConfidenceAlone(t *testing.T) {
	assert.False(t, shouldActivate(Context{Activity: ActivityUnknown, Confidence: 0.9}))
}

func TestShouldActivate_HighImpactKeywordBypassesThreshold(t *testing.T) {
	c := Context{Activity: ActivityUnknown, Confidence: 0.15, DetectedKeywords: []string{"security"}}
	assert.True(t, shouldActivate(c))
}

func TestEngine_Activate_EmitsGuidanceForAPISecurityMessage(t *testing.T) {
	loader := staticRuleLoader{
		"architecture": {{Domain: "architecture", Name: "layered-boundaries", Description: "Keep transport, domain, and storage layers separate", Priority: PriorityHigh}},
		"security":     {{Domain: "security", Name: "authn-required", Description: "Require authentication on every mutating endpoint", Priority: PriorityCritical, Triggers: []string{"authentication"}}},
		"performance":  {{Domain: "performance", Name: "avoid-n-plus-one", Description: "Batch queries", Priority: PriorityMedium}},
	}
	st := store.NewMemoryStore()
	eng := New(loader, st, clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	result, err := eng.Activate(context.Background(), "Let's build a REST API with authentication", nil, "proj-1")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Contains(t, result.Guidance, "api")
	assert.Contains(t, result.Guidance, "security")
	assert.NotEmpty(t, result.TokenRefs)
	assert.Contains(t, result.TokenRefs, "security::authn-required")

	metrics, err := st.FetchGovernanceTokenMetrics(context.Background(), store.TokenMetricFilter{ProjectID: "proj-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, metrics)
}

func TestEngine_Activate_ReturnsNilForUnrelatedMessage(t *testing.T) {
	loader := staticRuleLoader{}
	st := store.NewMemoryStore()
	eng := New(loader, st, clock.New())

	result, err := eng.Activate(context.Background(), "what's for lunch", nil, "proj-1")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestEngine_Activate_RequiresRuleLoaderAndStore(t *testing.T) {
	st := store.NewMemoryStore()
	eng := New(nil, st, clock.New())
	_, err := eng.Activate(context.Background(), "let's build a secure api", nil, "p")
	assert.ErrorIs(t, err, ErrRuleLoaderRequired)

	loader := staticRuleLoader{}
	eng2 := New(loader, nil, clock.New())
	_, err = eng2.Activate(context.Background(), "let's build a secure api", nil, "p")
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestTokenSample_BoundedToUnitInterval(t *testing.T) {
	r := Rule{Domain: "security", Name: "x", Priority: PriorityCritical, Triggers: []string{"security", "auth"}}
	c := Context{Confidence: 1.0, DetectedKeywords: []string{"security", "auth"}}

	sample := tokenSample(c, r, 1)
	assert.True(t, sample >= 0 && sample <= 1)
}

func TestDeterminePriority_KeywordHeuristic(t *testing.T) {
	assert.Equal(t, PriorityCritical, determinePriority(Rule{Name: "auth check", Description: "prevents vulnerability"}, 1))
	assert.Equal(t, PriorityHigh, determinePriority(Rule{Name: "cache tune", Description: "improves performance and scalability"}, 1))
	assert.Equal(t, PriorityMedium, determinePriority(Rule{Name: "style", Description: "keep files tidy"}, 1))
	assert.Equal(t, PriorityHigh, determinePriority(Rule{Name: "style", Description: "keep files tidy"}, 6))
}
