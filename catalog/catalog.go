// Package catalog holds the per-session product catalog and the fuzzy
// resolver that maps classifier output onto exactly one catalog entry.
package catalog

import (
	"strings"

	"github.com/AlexandroAurellino/live-shop-bot/types"
)

// Catalog is an immutable snapshot of the products configured for a session.
// Iteration order is the configured order; the resolver's tie-break depends
// on it.
type Catalog struct {
	products []types.Product
	media    map[string]string
	keywords []string
}

// New builds a catalog snapshot with its derived lookup structures.
func New(products []types.Product) *Catalog {
	c := &Catalog{
		products: make([]types.Product, len(products)),
		media:    make(map[string]string, len(products)),
	}
	copy(c.products, products)

	seen := make(map[string]bool)
	for _, p := range products {
		c.media[p.Name] = p.MediaFile
		for _, k := range strings.Split(strings.ToLower(p.Description), ",") {
			k = strings.TrimSpace(k)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			c.keywords = append(c.keywords, k)
		}
	}
	return c
}

// Products returns the catalog entries in configured order.
func (c *Catalog) Products() []types.Product {
	return c.products
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.products)
}

// MediaFile returns the media file configured for a product name.
func (c *Catalog) MediaFile(name string) (string, bool) {
	f, ok := c.media[name]
	return f, ok
}

// Keywords returns the flattened, lowercased keyword tokens across every
// product description.
func (c *Catalog) Keywords() []string {
	return c.keywords
}
