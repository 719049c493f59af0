package markup

import (
	"fmt"
	"regexp"
	"strings"
)

// MappingTier names the resolution strategy that produced an icon mapping.
type MappingTier string

const (
	TierExactSymbol MappingTier = "exact-symbol"
	TierKeyword     MappingTier = "keyword"
	TierFuzzy       MappingTier = "fuzzy"
	TierDefault     MappingTier = "default"
)

// MappingResult is the outcome of icon resolution for one feature.
// Suggestion carries the best fuzzy candidate when it scored below the
// acceptance threshold: the feature takes the default icon, but a front end
// can still offer the candidate to the user.
type MappingResult struct {
	Icon            string
	Confidence      float64
	Tier            MappingTier
	Suggestion      string
	SuggestionScore float64
}

// KeywordRule associates one target icon with the keywords that select it.
// Rules are ordered: the first rule with any keyword hit wins, so the table
// is a slice rather than a map.
type KeywordRule struct {
	Icon     string   `yaml:"icon"`
	Keywords []string `yaml:"keywords"`
}

// IconMapper resolves a source symbol plus feature text onto a target
// platform icon. Resolution tiers, first match wins:
//
//  1. exact symbol table lookup (verbatim, case-sensitive), confidence 1.0
//  2. keyword scan of name+description against the ordered rule table, 0.8
//  3. fuzzy match of the symbol against all known icons, accepted at or
//     above the configured threshold; confidence is the score
//  4. the configured default icon, confidence 0.0
//
// An exact symbol mapping always outranks keyword and fuzzy results: an
// explicit table entry is a user decision, not a scoring artifact.
type IconMapper struct {
	symbolMap    map[string]string
	keywordRules []KeywordRule
	generic      map[string]struct{}
	defaultIcon  string
	threshold    float64
	matcher      SymbolMatcher
}

// NewIconMapper builds a mapper from immutable configuration. The matcher may
// be nil, in which case the stock SimilarityMatcher over the icons reachable
// from the tables is used.
func NewIconMapper(cfg *MappingConfig, matcher SymbolMatcher) (*IconMapper, error) {
	if cfg.DefaultIcon == "" {
		return nil, fmt.Errorf("icon mapping: no default icon configured")
	}
	generic := make(map[string]struct{}, len(cfg.GenericSymbols))
	for _, s := range cfg.GenericSymbols {
		generic[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	if matcher == nil {
		matcher = NewSimilarityMatcher(cfg.TargetIcons(), cfg.Synonyms)
	}
	return &IconMapper{
		symbolMap:    cfg.SymbolMap,
		keywordRules: cfg.KeywordRules,
		generic:      generic,
		defaultIcon:  cfg.DefaultIcon,
		threshold:    cfg.FuzzyThreshold,
		matcher:      matcher,
	}, nil
}

var keywordTokenRe = regexp.MustCompile(`[a-z0-9]+`)

// Resolve maps one feature's symbol and text. unresolved is true when the
// source carried a meaningful symbol that no tier could account for, which
// feeds the unmapped-symbols report.
func (m *IconMapper) Resolve(rawSymbol, name, description string) (MappingResult, bool) {
	symbol := strings.TrimSpace(rawSymbol)
	_, isGeneric := m.generic[strings.ToLower(symbol)]

	// Tier 1: exact, case-sensitive symbol lookup. Generic placeholder
	// symbols (pin, dot, ...) carry no intent and never match here.
	if symbol != "" && !isGeneric {
		if icon, ok := m.symbolMap[symbol]; ok {
			return MappingResult{Icon: icon, Confidence: 1.0, Tier: TierExactSymbol}, false
		}
	}

	// Tier 2: keyword scan over the feature's own text.
	text := strings.ToLower(name + " " + description)
	tokens := tokenSetFrom(text)
	for _, rule := range m.keywordRules {
		if keywordHit(rule.Keywords, text, tokens) {
			return MappingResult{Icon: rule.Icon, Confidence: 0.8, Tier: TierKeyword}, false
		}
	}

	// Tier 3: fuzzy symbol match. Only meaningful when there is a real
	// symbol to compare.
	if symbol != "" && !isGeneric {
		if icon, score, ok := m.matcher.BestMatch(symbol); ok {
			if score >= m.threshold {
				return MappingResult{Icon: icon, Confidence: score, Tier: TierFuzzy}, false
			}
			// Below threshold: default icon, candidate kept as suggestion.
			return MappingResult{
				Icon:            m.defaultIcon,
				Confidence:      0.0,
				Tier:            TierDefault,
				Suggestion:      icon,
				SuggestionScore: score,
			}, true
		}
		return MappingResult{Icon: m.defaultIcon, Tier: TierDefault}, true
	}

	return MappingResult{Icon: m.defaultIcon, Tier: TierDefault}, false
}

// keywordHit reports whether any keyword matches: phrases by substring,
// single words by whole-token match (so "th" cannot fire inside "path").
func keywordHit(keywords []string, text string, tokens map[string]struct{}) bool {
	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		if strings.Contains(k, " ") {
			if strings.Contains(text, k) {
				return true
			}
			continue
		}
		if _, ok := tokens[k]; ok {
			return true
		}
	}
	return false
}

func tokenSetFrom(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range keywordTokenRe.FindAllString(text, -1) {
		out[tok] = struct{}{}
	}
	return out
}

// UnmappedSymbol aggregates occurrences of one unresolved source symbol.
type UnmappedSymbol struct {
	Count            int
	ExampleFeatureID string
}
