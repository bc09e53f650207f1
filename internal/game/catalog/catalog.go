// Package catalog holds the immutable item dataset the game draws its
// comparisons from, and the randomness used to draw them.
package catalog

import (
	"errors"
	"fmt"
)

// Item is one comparable entry: a label shown to players and the hidden
// numeric value they guess against.
type Item struct {
	Label    string `yaml:"label"`
	Value    int    `yaml:"value"`
	ImageURL string `yaml:"image_url,omitempty"`
}

// ErrEmpty is returned when a catalog would contain no items.
var ErrEmpty = errors.New("catalog has no items")

// Catalog is a static ordered list of items with random-index queries.
// It is immutable after construction and safe for concurrent use when its
// Source is.
type Catalog struct {
	items []Item
	src   Source
}

// New builds a Catalog from items, drawing randomness from src.
//
// Precondition: src must be non-nil.
// Postcondition: Returns a Catalog holding a copy of items, or ErrEmpty.
func New(items []Item, src Source) (*Catalog, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	cp := make([]Item, len(items))
	copy(cp, items)
	return &Catalog{items: cp, src: src}, nil
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Item returns the item at index i.
//
// Precondition: 0 <= i < Len().
func (c *Catalog) Item(i int) Item {
	if i < 0 || i >= len(c.items) {
		panic(fmt.Sprintf("catalog: index %d out of range [0, %d)", i, len(c.items)))
	}
	return c.items[i]
}

// Items returns a copy of every item in catalog order.
func (c *Catalog) Items() []Item {
	cp := make([]Item, len(c.items))
	copy(cp, c.items)
	return cp
}

// RandomIndex returns a uniformly drawn index in [0, Len()).
func (c *Catalog) RandomIndex() int {
	if len(c.items) <= 1 {
		return 0
	}
	return c.src.Intn(len(c.items))
}

// RandomIndexExcept returns a uniformly drawn index in [0, Len()) different
// from except, redrawing while equal.
//
// Postcondition: With Len() <= 1 the result is always 0; otherwise the result
// is in [0, Len()) and != except.
func (c *Catalog) RandomIndexExcept(except int) int {
	n := len(c.items)
	if n <= 1 {
		return 0
	}
	for {
		idx := c.src.Intn(n)
		if idx != except {
			return idx
		}
	}
}
