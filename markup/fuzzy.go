package markup

import (
	"regexp"
	"sort"
	"strings"
)

// SymbolMatcher scores an unmapped source symbol against the known target
// icons. Scores are heuristic, not probabilistic: they exist to rank
// candidates deterministically, and the exact scoring function is an
// implementation detail of the matcher so alternatives can be swapped in
// without touching the mapper or orchestrator.
type SymbolMatcher interface {
	// BestMatch returns the top-scoring icon and its score in [0,1].
	// ok is false when there are no icons to score against.
	BestMatch(symbol string) (icon string, score float64, ok bool)
}

// SimilarityMatcher is the stock SymbolMatcher: a blend of normalized
// edit distance, semantic synonym groups, and word-overlap. The blend weights
// are fixed; what varies per deployment is the icon list and synonym table.
type SimilarityMatcher struct {
	icons    []string
	synonyms map[string][]string
}

// NewSimilarityMatcher builds a matcher over the given target icon names.
// A nil synonym table falls back to the stock outdoor-recreation groups.
func NewSimilarityMatcher(icons []string, synonyms map[string][]string) *SimilarityMatcher {
	if synonyms == nil {
		synonyms = defaultSynonyms()
	}
	return &SimilarityMatcher{icons: icons, synonyms: synonyms}
}

var (
	symbolPrefixRe = regexp.MustCompile(`(?i)^(marker-|icon-|symbol-)`)
	symbolNumRe    = regexp.MustCompile(`[-_]\d+$`)
)

// normalizeSymbol strips the decoration source platforms add to marker
// tokens: vendor prefixes, trailing numbering ("climb-2"), and separator
// characters.
func normalizeSymbol(symbol string) string {
	s := symbolPrefixRe.ReplaceAllString(symbol, "")
	s = symbolNumRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// BestMatch scores every icon and returns the winner. Equal scores resolve
// to the alphabetically first icon so repeated runs agree.
func (m *SimilarityMatcher) BestMatch(symbol string) (string, float64, bool) {
	if len(m.icons) == 0 {
		return "", 0, false
	}
	norm := normalizeSymbol(symbol)

	sorted := append([]string(nil), m.icons...)
	sort.Strings(sorted)

	bestIcon := sorted[0]
	bestScore := m.score(norm, sorted[0])
	for _, icon := range sorted[1:] {
		if s := m.score(norm, icon); s > bestScore {
			bestIcon = icon
			bestScore = s
		}
	}
	return bestIcon, bestScore, true
}

func (m *SimilarityMatcher) score(symbol, icon string) float64 {
	iconLower := strings.ToLower(icon)

	if symbol == iconLower {
		return 1.0
	}
	if symbol != "" && strings.Contains(iconLower, symbol) {
		return 0.95
	}
	if symbol != "" && strings.Contains(symbol, iconLower) {
		return 0.9
	}

	seq := editRatio(symbol, iconLower)
	syn := m.synonymScore(symbol, iconLower)
	word := wordOverlap(symbol, iconLower)
	return seq*0.4 + syn*0.4 + word*0.2
}

// editRatio is a normalized edit-distance similarity: 1 - dist/maxLen.
func editRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0.0
	}

	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	dist := prev[lb]
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// synonymScore checks whether symbol and icon belong to the same semantic
// group (camp/tent/bivy all point at camping icons, and so on).
func (m *SimilarityMatcher) synonymScore(symbol, iconLower string) float64 {
	if symbol == "" {
		return 0.0
	}
	for key, related := range m.synonyms {
		if strings.Contains(symbol, key) || strings.Contains(key, symbol) {
			for _, term := range related {
				if strings.Contains(iconLower, term) {
					return 0.85
				}
			}
		}
	}
	for key, related := range m.synonyms {
		if strings.Contains(iconLower, key) || strings.Contains(key, iconLower) {
			for _, term := range related {
				if strings.Contains(symbol, term) {
					return 0.8
				}
			}
		}
	}
	return 0.0
}

// wordOverlap is the Jaccard similarity of the two token sets, which catches
// multi-word icons like "ski touring" against symbols like "touring skis".
func wordOverlap(symbol, iconLower string) float64 {
	sw := tokenSet(symbol)
	iw := tokenSet(iconLower)
	if len(sw) == 0 || len(iw) == 0 {
		return 0.0
	}
	inter := 0
	for w := range sw {
		if _, ok := iw[w]; ok {
			inter++
		}
	}
	union := len(sw) + len(iw) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		out[w] = struct{}{}
	}
	return out
}

// defaultSynonyms groups terms that designate the same kind of map marker
// across platforms.
func defaultSynonyms() map[string][]string {
	return map[string][]string{
		"climb":     {"climbing", "rappel", "caving", "ascent"},
		"camp":      {"campsite", "campground", "camping", "camp area", "camp backcountry"},
		"tent":      {"campsite", "camping", "camp"},
		"bivy":      {"camp backcountry", "bivouac"},
		"water":     {"creek", "stream", "lake", "river", "spring", "water source"},
		"spring":    {"water source", "water"},
		"falls":     {"waterfall"},
		"hot":       {"hot spring", "thermal", "geyser"},
		"ski":       {"skiing", "xc skiing", "ski touring", "backcountry"},
		"skin":      {"ski touring", "skin track", "uptrack"},
		"tour":      {"ski touring", "touring"},
		"snowboard": {"snowboarder", "boarding"},
		"snow":      {"snowmobile", "snowpark", "snow pit"},
		"danger":    {"hazard", "caution", "warning"},
		"avy":       {"avalanche", "hazard", "slide"},
		"avalanche": {"hazard", "avy", "slide path"},
		"car":       {"parking", "vehicle", "lot"},
		"parking":   {"lot", "trailhead"},
		"bike":      {"bicycle", "mountain biking", "dirt bike"},
		"atv":       {"quad", "4x4"},
		"trail":     {"trailhead", "hike", "path"},
		"trailhead": {"trail head", "th", "parking"},
		"hike":      {"hiking", "backpacker", "mountaineer"},
		"peak":      {"summit", "mountain", "top"},
		"summit":    {"peak", "top", "mountain"},
		"view":      {"viewpoint", "vista", "overlook", "lookout"},
		"camera":    {"photo", "picture"},
		"lookout":   {"observation", "tower", "view"},
		"cabin":     {"hut", "yurt", "shelter"},
		"shelter":   {"refuge", "cabin", "house"},
		"boat":      {"canoe", "kayak", "raft"},
		"paddle":    {"canoe", "kayak"},
		"raft":      {"rafting", "put in", "take out"},
		"bird":      {"eagle"},
		"fish":      {"fishing"},
		"food":      {"restaurant", "food source", "aid station"},
		"emergency": {"phone", "sos", "rescue"},
	}
}
