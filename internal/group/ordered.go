// Package group provides insertion-ordered grouping for deterministic aggregation output.
package group

// Ordered maps keys to slices of values and remembers the order keys were first seen.
type Ordered[K comparable, V any] struct {
	keys []K
	data map[K][]V
}

// New creates an empty Ordered group.
func New[K comparable, V any]() *Ordered[K, V] {
	return &Ordered[K, V]{data: make(map[K][]V)}
}

// By groups items by the key function, preserving first-seen key order.
func By[K comparable, V any](items []V, key func(V) K) *Ordered[K, V] {
	g := New[K, V]()
	for _, item := range items {
		g.Append(key(item), item)
	}
	return g
}

// Append adds v to the group for k.
func (g *Ordered[K, V]) Append(k K, v V) {
	if _, ok := g.data[k]; !ok {
		g.keys = append(g.keys, k)
	}
	g.data[k] = append(g.data[k], v)
}

// Keys returns keys in first-seen order.
func (g *Ordered[K, V]) Keys() []K {
	out := make([]K, len(g.keys))
	copy(out, g.keys)
	return out
}

// Get returns the values for k.
func (g *Ordered[K, V]) Get(k K) ([]V, bool) {
	v, ok := g.data[k]
	return v, ok
}

// Len returns the number of distinct keys.
func (g *Ordered[K, V]) Len() int {
	return len(g.keys)
}

// Each calls fn for every group in first-seen order.
func (g *Ordered[K, V]) Each(fn func(k K, values []V)) {
	for _, k := range g.keys {
		fn(k, g.data[k])
	}
}

// MarketSKU is the (market, sku) composite grouping key.
type MarketSKU struct {
	MarketID string
	SKUID    string
}

// MarketCategory is the (market, category) composite grouping key.
type MarketCategory struct {
	MarketID   string
	CategoryID string
}

// VendorMarketSKU is the (vendor, market, sku) composite grouping key.
type VendorMarketSKU struct {
	VendorID string
	MarketID string
	SKUID    string
}
