// Package view turns catalog and cart state into the models the templates render.
package view

import (
	"html/template"
	"net/url"
	"strconv"
	"strings"

	"finitefield.org/mercadito/internal/cart"
	"finitefield.org/mercadito/internal/catalog"
	"finitefield.org/mercadito/internal/format"
	"finitefield.org/mercadito/internal/search"
	"finitefield.org/mercadito/internal/totals"
)

// Translator is the subset of the i18n bundle the builders use.
type Translator interface {
	T(lang, key string) string
	Plural(lang, key string, n int) string
	Format(lang, key string, args map[string]string) string
}

// State is everything a page is derived from.
type State struct {
	Catalog *catalog.Catalog
	Cart    *cart.Cart
	Ready   bool
}

// Options carries per-request presentation settings.
type Options struct {
	Lang            string
	Translator      Translator
	LocalCurrency   string
	ForeignCurrency string
}

// Page is the full storefront view model.
type Page struct {
	Lang        string
	CSRFToken   string
	Query       string
	SearchURL   string
	Rate        string
	Notice      template.HTML
	Ready       bool
	NoResults   bool
	ResultCount int
	Products    []ProductCard
	Cart        CartPanel
}

// ProductCard is one entry in the product list.
type ProductCard struct {
	ID       int
	Name     string
	Weight   string
	Price    string
	Quantity int
	InCart   bool
}

// CartPanel is the cart sidebar plus the preview bar.
type CartPanel struct {
	Lang          string
	CSRFToken     string
	Lines         []CartLine
	Empty         bool
	Distinct      int
	TotalQuantity int
	TotalWeight   string
	TotalLocal    string
	TotalForeign  string
	Preview       string
	Change        *ChangeView
}

// CartLine is one row in the cart panel.
type CartLine struct {
	ID        int
	Name      string
	Weight    string
	Quantity  int
	UnitPrice string
	LineTotal string
}

// ChangeView renders the whole-note payment suggestions.
type ChangeView struct {
	UpLabel   string
	DownLabel string
	ShowDown  bool
}

// BuildPage derives the page for query from state.
func BuildPage(state State, query string, opts Options) Page {
	c := state.Catalog
	if c == nil {
		c = catalog.Empty()
	}
	query = strings.TrimSpace(query)

	page := Page{
		Lang:      opts.Lang,
		Query:     query,
		SearchURL: SearchURL(query),
		Rate:      format.Currency(c.Rate, opts.LocalCurrency),
		Notice:    template.HTML(c.NoticeHTML), // sanitized at load time
		Ready:     state.Ready,
		Products:  BuildProducts(c, state.Cart, query, opts),
		Cart:      BuildCart(c, state.Cart, opts),
	}
	page.ResultCount = len(page.Products)
	page.NoResults = state.Ready && page.ResultCount == 0
	return page
}

// BuildProducts returns the product cards matching query, in catalog order.
func BuildProducts(c *catalog.Catalog, items *cart.Cart, query string, opts Options) []ProductCard {
	if c == nil {
		return nil
	}
	matches := search.Filter(c.Products, query)
	cards := make([]ProductCard, 0, len(matches))
	for _, p := range matches {
		qty := items.Quantity(p.ID)
		cards = append(cards, ProductCard{
			ID:       p.ID,
			Name:     p.Name,
			Weight:   format.Weight(p.WeightGrams),
			Price:    format.Currency(p.Price, opts.LocalCurrency),
			Quantity: qty,
			InCart:   qty > 0,
		})
	}
	return cards
}

// BuildCart computes totals and labels for the cart panel.
func BuildCart(c *catalog.Catalog, items *cart.Cart, opts Options) CartPanel {
	sum := totals.Compute(c, items)
	panel := CartPanel{
		Lang:          opts.Lang,
		Empty:         sum.Empty(),
		Distinct:      sum.Distinct,
		TotalQuantity: sum.TotalQuantity,
		TotalWeight:   format.TotalWeight(sum.TotalWeight),
		TotalLocal:    format.Currency(sum.Local, opts.LocalCurrency),
		TotalForeign:  format.Currency(sum.Foreign, opts.ForeignCurrency),
		Preview:       previewLabel(opts, sum.TotalQuantity),
	}
	for _, line := range sum.Lines {
		panel.Lines = append(panel.Lines, CartLine{
			ID:        line.Product.ID,
			Name:      line.Product.Name,
			Weight:    format.Weight(line.Product.WeightGrams),
			Quantity:  line.Quantity,
			UnitPrice: format.Currency(line.Product.Price, opts.LocalCurrency),
			LineTotal: format.Currency(line.LineTotal, opts.LocalCurrency),
		})
	}
	panel.Change = changeView(sum.Change, opts)
	return panel
}

func previewLabel(opts Options, n int) string {
	if opts.Translator == nil {
		if n == 1 {
			return "1 producto"
		}
		return strconv.Itoa(n) + " productos"
	}
	return opts.Translator.Plural(opts.Lang, "cart.preview_items", n)
}

func changeView(ch *totals.Change, opts Options) *ChangeView {
	if ch == nil {
		return nil
	}
	notes := func(n string) string { return n + " " + opts.ForeignCurrency }
	up := map[string]string{
		"amount": format.Currency(ch.Owed, opts.LocalCurrency),
		"notes":  notes(format.Whole(ch.Up)),
	}
	down := map[string]string{
		"amount": format.Currency(ch.Return, opts.LocalCurrency),
		"notes":  notes(format.Whole(ch.Down)),
	}
	v := &ChangeView{ShowDown: ch.Down.IsPositive()}
	if opts.Translator == nil {
		v.UpLabel = "Vuelto: " + up["amount"] + " si paga " + up["notes"]
		v.DownLabel = "Completar: " + down["amount"] + " si paga " + down["notes"]
		return v
	}
	v.UpLabel = opts.Translator.Format(opts.Lang, "cart.change_up", up)
	v.DownLabel = opts.Translator.Format(opts.Lang, "cart.change_down", down)
	return v
}

// SearchURL is the address pushed to the browser history for a query.
func SearchURL(query string) string {
	if query == "" {
		return "/"
	}
	return "/?" + url.Values{"q": {query}}.Encode()
}
