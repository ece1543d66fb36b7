// Package totals derives cart lines, currency totals and change suggestions.
package totals

import (
	"github.com/shopspring/decimal"

	"finitefield.org/mercadito/internal/cart"
	"finitefield.org/mercadito/internal/catalog"
)

// Line is a cart entry joined with its product.
type Line struct {
	Product   catalog.Product
	Quantity  int
	LineTotal decimal.Decimal
	Weight    float64
}

// Summary holds everything the cart panel shows.
type Summary struct {
	Lines         []Line
	Distinct      int
	TotalQuantity int
	TotalWeight   float64
	Local         decimal.Decimal
	Foreign       decimal.Decimal
	Rate          decimal.Decimal
	Change        *Change
}

// Change describes the two ways of paying a foreign total with whole notes.
// Paying Up notes leaves Owed (local currency) to hand back to the buyer.
// Paying Down notes leaves Return (local currency) for the buyer to complete.
type Change struct {
	Up     decimal.Decimal
	Down   decimal.Decimal
	Owed   decimal.Decimal
	Return decimal.Decimal
}

// Empty reports whether the summary has no lines.
func (s Summary) Empty() bool { return len(s.Lines) == 0 }

// Compute joins the cart with the catalog. Cart entries whose product is not
// in the catalog are skipped. Lines are ordered like the catalog, by name.
func Compute(c *catalog.Catalog, items *cart.Cart) Summary {
	rate := decimal.Zero
	if c != nil {
		rate = c.Rate
	}
	s := Summary{Local: decimal.Zero, Foreign: decimal.Zero, Rate: rate}
	if c == nil || items.IsEmpty() {
		return s
	}

	for _, p := range c.Products {
		qty := items.Quantity(p.ID)
		if qty <= 0 {
			continue
		}
		q := decimal.NewFromInt(int64(qty))
		line := Line{
			Product:   p,
			Quantity:  qty,
			LineTotal: p.Price.Mul(q),
			Weight:    p.WeightGrams * float64(qty),
		}
		s.Lines = append(s.Lines, line)
		s.TotalQuantity += qty
		s.TotalWeight += line.Weight
		s.Local = s.Local.Add(line.LineTotal)
	}
	s.Distinct = len(s.Lines)
	s.Foreign = Convert(s.Local, rate)
	s.Change = MakeChange(s.Foreign, rate)
	return s
}

// Convert divides a local amount by rate. A non-positive rate yields zero.
func Convert(local, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return local.Div(rate)
}

// MakeChange computes the whole-note options for foreign total t. It returns
// nil when t is not positive or the rate is unusable.
func MakeChange(t, rate decimal.Decimal) *Change {
	if !t.IsPositive() || !rate.IsPositive() {
		return nil
	}
	up := t.Ceil()
	down := t.Floor()
	return &Change{
		Up:     up,
		Down:   down,
		Owed:   up.Sub(t).Round(2).Mul(rate).Round(2),
		Return: t.Sub(down).Round(2).Mul(rate).Round(2),
	}
}
