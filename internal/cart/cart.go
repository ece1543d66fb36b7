// Package cart keeps the product id to quantity mapping and persists it.
package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

var (
	// ErrUnknownProduct is returned when a mutation names a product that is not in the catalog.
	ErrUnknownProduct = errors.New("cart: unknown product")
	// ErrMalformed marks persisted data that could not be decoded. Callers treat it as an empty cart.
	ErrMalformed = errors.New("cart: malformed data")
)

// Cart maps product ids to positive quantities. Absent ids have quantity zero
// and no entry is ever kept at zero or below.
type Cart struct {
	items map[int]int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{items: map[int]int{}}
}

// FromMap builds a cart from a plain mapping, dropping non-positive entries.
func FromMap(items map[int]int) *Cart {
	c := New()
	for id, qty := range items {
		if qty > 0 {
			c.items[id] = qty
		}
	}
	return c
}

// Add changes the quantity of id by delta and returns the resulting quantity.
// The entry is removed when the result is zero or less.
func (c *Cart) Add(id, delta int) int {
	c.ensure()
	next := c.items[id] + delta
	if next <= 0 {
		delete(c.items, id)
		return 0
	}
	c.items[id] = next
	return next
}

// Remove drops id from the cart.
func (c *Cart) Remove(id int) {
	c.ensure()
	delete(c.items, id)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = map[int]int{}
}

// Quantity returns the quantity for id, zero when absent.
func (c *Cart) Quantity(id int) int {
	if c == nil {
		return 0
	}
	return c.items[id]
}

// Contains reports whether id has an entry.
func (c *Cart) Contains(id int) bool {
	return c.Quantity(id) > 0
}

// Len returns the number of distinct products.
func (c *Cart) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// IsEmpty reports whether the cart has no entries.
func (c *Cart) IsEmpty() bool {
	return c.Len() == 0
}

// TotalQuantity sums all quantities.
func (c *Cart) TotalQuantity() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, qty := range c.items {
		total += qty
	}
	return total
}

// IDs returns the product ids in ascending order.
func (c *Cart) IDs() []int {
	if c == nil {
		return nil
	}
	ids := make([]int, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Items returns a copy of the mapping.
func (c *Cart) Items() map[int]int {
	out := make(map[int]int, c.Len())
	if c == nil {
		return out
	}
	for id, qty := range c.items {
		out[id] = qty
	}
	return out
}

// Clone returns an independent copy.
func (c *Cart) Clone() *Cart {
	return &Cart{items: c.Items()}
}

func (c *Cart) ensure() {
	if c.items == nil {
		c.items = map[int]int{}
	}
}

// MarshalJSON encodes the cart as {"<id>": quantity}.
func (c *Cart) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Items())
}

// Encode serializes the cart for persistence.
func (c *Cart) Encode() ([]byte, error) {
	raw, err := json.Marshal(c.Items())
	if err != nil {
		return nil, fmt.Errorf("cart: encode: %w", err)
	}
	return raw, nil
}

// Decode parses persisted data. Empty input is an empty cart. Entries with
// non-numeric ids or non-positive, non-integer quantities are dropped. A
// document that is not a JSON object yields an empty cart and ErrMalformed.
func Decode(raw []byte) (*Cart, error) {
	c := New()
	if len(bytes.TrimSpace(raw)) == 0 {
		return c, nil
	}

	var stored map[string]json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&stored); err != nil {
		return c, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for key, value := range stored {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		qty, err := value.Int64()
		if err != nil || qty <= 0 {
			continue
		}
		c.items[id] = int(qty)
	}
	return c, nil
}
