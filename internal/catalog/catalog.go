// Package catalog loads the product list and exchange rate the storefront renders.
package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidDocument reports a catalog document that parsed but failed validation.
	ErrInvalidDocument = errors.New("catalog: invalid document")
	// ErrNotFound is returned when a product id is not part of the catalog.
	ErrNotFound = errors.New("catalog: product not found")
)

// Product is a single catalog entry. Products are immutable after load.
type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	WeightGrams float64         `json:"weight_grams"`
	Price       decimal.Decimal `json:"price"`
}

// Catalog is the loaded document: exchange rate plus products sorted by name.
type Catalog struct {
	Rate       decimal.Decimal
	Products   []Product
	Notice     string
	NoticeHTML string
	Source     string
	LoadedAt   time.Time

	byID map[int]int
}

// New builds a catalog from already validated parts, sorting products by name.
func New(rate decimal.Decimal, products []Product) *Catalog {
	sorted := make([]Product, len(products))
	copy(sorted, products)
	SortByName(sorted)

	c := &Catalog{
		Rate:     rate,
		Products: sorted,
		byID:     make(map[int]int, len(sorted)),
	}
	for i, p := range sorted {
		c.byID[p.ID] = i
	}
	return c
}

// Empty returns the catalog used before a load completes or after it fails.
func Empty() *Catalog {
	return &Catalog{Rate: decimal.Zero, byID: map[int]int{}}
}

// Find looks a product up by id.
func (c *Catalog) Find(id int) (Product, error) {
	if c == nil {
		return Product{}, ErrNotFound
	}
	idx, ok := c.byID[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return c.Products[idx], nil
}

// Has reports whether the id exists in the catalog.
func (c *Catalog) Has(id int) bool {
	_, err := c.Find(id)
	return err == nil
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Products)
}
