package catalog

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/AlexandroAurellino/live-shop-bot/types"
)

// DefaultThreshold is the minimum similarity score at which a free-text name
// is accepted as naming a catalog product. Tuned against Similarity; change
// both together.
const DefaultThreshold = 0.5

// substringScore is the fixed score for a substring match in either
// direction. The classifier often returns names like "the lamp" for a
// product called "Lamp"; substring containment is a stronger signal than any
// edit-distance ratio would report.
const substringScore = 0.9

// Resolve maps a free-text product name onto exactly one catalog entry, or
// reports false if no entry scores at least DefaultThreshold. Ties keep the
// first-seen maximum in catalog order.
func (c *Catalog) Resolve(name string) (types.Product, bool) {
	return c.ResolveWithThreshold(name, DefaultThreshold)
}

// ResolveWithThreshold is Resolve with an explicit acceptance threshold.
func (c *Catalog) ResolveWithThreshold(name string, threshold float64) (types.Product, bool) {
	name = strings.TrimSpace(name)
	if name == "" || len(c.products) == 0 {
		return types.Product{}, false
	}

	var best types.Product
	bestScore := -1.0
	for _, p := range c.products {
		score := Similarity(name, p.Name)
		if score > bestScore {
			bestScore = score
			best = p
		}
	}

	if bestScore < threshold {
		return types.Product{}, false
	}
	return best, true
}

// Similarity scores how closely two product names match, case-insensitively,
// in [0,1]. A substring match in either direction scores substringScore;
// otherwise the score is a normalized levenshtein ratio (1.0 for identical
// strings, approaching 0 for disjoint ones).
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == "" || b == "" {
		if a == b {
			return 1.0
		}
		return 0.0
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		return substringScore
	}

	dist := levenshtein.ComputeDistance(a, b)
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	return 1.0 - float64(dist)/float64(longest)
}
