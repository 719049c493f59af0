package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMapper(t *testing.T) *IconMapper {
	t.Helper()
	m, err := NewIconMapper(DefaultMappingConfig(), nil)
	require.NoError(t, err)
	return m
}

func TestResolve_ExactSymbolTier(t *testing.T) {
	m := newTestMapper(t)

	res, unresolved := m.Resolve("tent", "", "")
	assert.False(t, unresolved)
	assert.Equal(t, "Camp", res.Icon)
	assert.Equal(t, TierExactSymbol, res.Tier)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestResolve_ExactLookupIsCaseSensitive(t *testing.T) {
	m := newTestMapper(t)

	// "Tent" is not in the table verbatim, so it must not hit tier 1.
	res, _ := m.Resolve("Tent", "", "")
	assert.NotEqual(t, TierExactSymbol, res.Tier)
}

func TestResolve_ExactOutranksKeyword(t *testing.T) {
	m := newTestMapper(t)

	// Text mentions water, but the explicit symbol entry wins.
	res, unresolved := m.Resolve("tent", "Water refill", "creek nearby")
	assert.False(t, unresolved)
	assert.Equal(t, "Camp", res.Icon)
	assert.Equal(t, TierExactSymbol, res.Tier)
}

func TestResolve_KeywordTier(t *testing.T) {
	m := newTestMapper(t)

	res, unresolved := m.Resolve("", "Spring", "reliable water source")
	assert.False(t, unresolved)
	assert.Equal(t, "Water Source", res.Icon)
	assert.Equal(t, TierKeyword, res.Tier)
	assert.Equal(t, 0.8, res.Confidence)
}

func TestResolve_KeywordRulesAreOrdered(t *testing.T) {
	m := newTestMapper(t)

	// "camp by the creek" matches both the Camp and Water Source rules;
	// the earlier rule in the table wins.
	res, _ := m.Resolve("", "camp by the creek", "")
	assert.Equal(t, "Camp", res.Icon)
}

func TestResolve_KeywordWholeTokenOnly(t *testing.T) {
	m := newTestMapper(t)

	// "th" is a Trailhead keyword but must not fire inside "path".
	res, _ := m.Resolve("", "forest path", "")
	assert.NotEqual(t, "Trailhead", res.Icon)
}

func TestResolve_GenericSymbolSkipsSymbolTiers(t *testing.T) {
	m := newTestMapper(t)

	// A generic placeholder with useful text resolves through keywords.
	res, unresolved := m.Resolve("pin", "parking lot", "")
	assert.False(t, unresolved)
	assert.Equal(t, "Parking", res.Icon)
	assert.Equal(t, TierKeyword, res.Tier)

	// A generic placeholder with no text lands on the default, and is NOT
	// reported unmapped: there was nothing to map.
	res, unresolved = m.Resolve("pin", "", "")
	assert.False(t, unresolved)
	assert.Equal(t, "Location", res.Icon)
	assert.Equal(t, TierDefault, res.Tier)
}

func TestResolve_FuzzyTier(t *testing.T) {
	m := newTestMapper(t)

	// Not in the symbol table, but close enough to a canonical icon.
	res, unresolved := m.Resolve("waterfalls", "", "")
	assert.False(t, unresolved)
	assert.Equal(t, TierFuzzy, res.Tier)
	assert.Equal(t, "Waterfall", res.Icon)
	assert.GreaterOrEqual(t, res.Confidence, DefaultFuzzyThreshold)
}

func TestResolve_BelowThresholdKeepsSuggestion(t *testing.T) {
	cfg := DefaultMappingConfig()
	cfg.FuzzyThreshold = 0.99 // force everything fuzzy below threshold
	m, err := NewIconMapper(cfg, nil)
	require.NoError(t, err)

	res, unresolved := m.Resolve("waterfalls", "", "")
	assert.True(t, unresolved)
	assert.Equal(t, "Location", res.Icon)
	assert.Equal(t, TierDefault, res.Tier)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, "Waterfall", res.Suggestion)
	assert.Greater(t, res.SuggestionScore, 0.0)
}

func TestResolve_EmptySymbolNoTextIsNotUnmapped(t *testing.T) {
	m := newTestMapper(t)

	res, unresolved := m.Resolve("", "", "")
	assert.False(t, unresolved)
	assert.Equal(t, "Location", res.Icon)
	assert.Equal(t, TierDefault, res.Tier)
}

func TestNewIconMapper_RequiresDefaultIcon(t *testing.T) {
	cfg := DefaultMappingConfig()
	cfg.DefaultIcon = ""
	_, err := NewIconMapper(cfg, nil)
	assert.Error(t, err)
}
