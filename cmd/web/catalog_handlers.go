package main

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"finitefield.org/mercadito/internal/cart"
	"finitefield.org/mercadito/internal/catalog"
	"finitefield.org/mercadito/internal/format"
	mw "finitefield.org/mercadito/internal/middleware"
	"finitefield.org/mercadito/internal/platform/httpx"
	"finitefield.org/mercadito/internal/platform/requestctx"
	"finitefield.org/mercadito/internal/search"
	"finitefield.org/mercadito/internal/view"
)

// productListID is the element id of the product list; htmx sends it in
// HX-Trigger when the list refreshes itself after a cart change.
const productListID = "product-list"

func (a *app) viewOptions(r *http.Request) view.Options {
	return view.Options{
		Lang:            mw.Lang(r),
		Translator:      a.bundle,
		LocalCurrency:   a.cfg.Currency.Local,
		ForeignCurrency: a.cfg.Currency.Foreign,
	}
}

// loadCart reads the current cart. Storage failures degrade to an empty cart
// for rendering, since the page is still usable for browsing.
func (a *app) loadCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, cart.Store) {
	store := a.carts.Open(w, r, mw.SessionID(r))
	items, err := store.Load(r.Context())
	if err != nil {
		requestctx.Logger(r.Context()).Warn("cart load failed", zap.String("backend", a.carts.Name()), zap.Error(err))
		return cart.New(), store
	}
	return items, store
}

func (a *app) buildPage(w http.ResponseWriter, r *http.Request, query string) view.Page {
	items, _ := a.loadCart(w, r)
	state := view.State{Catalog: a.catalog.Get(), Cart: items, Ready: a.catalog.Ready()}
	page := view.BuildPage(state, query, a.viewOptions(r))
	page.CSRFToken = mw.CSRFToken(r)
	page.Cart.CSRFToken = page.CSRFToken
	return page
}

// home renders the storefront.
func (a *app) home(w http.ResponseWriter, r *http.Request) {
	page := a.buildPage(w, r, r.URL.Query().Get("q"))
	a.templates.render(w, r, http.StatusOK, "base", page)
}

// productsFrag renders the filtered product list fragment.
func (a *app) productsFrag(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if !mw.IsHTMX(r.Context()) {
		http.Redirect(w, r, view.SearchURL(query), http.StatusSeeOther)
		return
	}
	page := a.buildPage(w, r, query)
	if r.Header.Get("HX-Trigger") != productListID {
		mw.PushURL(w, page.SearchURL)
	}
	a.templates.render(w, r, http.StatusOK, "frag_products", page)
}

type apiProduct struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	WeightGrams float64         `json:"weight_grams"`
	Price       decimal.Decimal `json:"price"`
}

type apiProductsResponse struct {
	Query    string       `json:"query"`
	Rate     string       `json:"exchange_rate"`
	Ready    bool         `json:"ready"`
	Count    int          `json:"count"`
	Products []apiProduct `json:"products"`
}

func toAPIProducts(products []catalog.Product) []apiProduct {
	out := make([]apiProduct, 0, len(products))
	for _, p := range products {
		out = append(out, apiProduct(p))
	}
	return out
}

// apiProducts returns the filtered product list as JSON.
func (a *app) apiProducts(w http.ResponseWriter, r *http.Request) {
	c := a.catalog.Get()
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	matches := search.Filter(c.Products, query)
	httpx.WriteJSON(w, http.StatusOK, apiProductsResponse{
		Query:    query,
		Rate:     format.Rate(c.Rate),
		Ready:    a.catalog.Ready(),
		Count:    len(matches),
		Products: toAPIProducts(matches),
	})
}

type catalogDocumentResponse struct {
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	Products     []apiProduct    `json:"products"`
	Notice       string          `json:"notice,omitempty"`
}

// catalogDocument re-serves the loaded catalog so the service worker can keep
// an offline copy.
func (a *app) catalogDocument(w http.ResponseWriter, r *http.Request) {
	if !a.catalog.Ready() {
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeCatalogUnavailable, "catalog not loaded yet", http.StatusServiceUnavailable))
		return
	}
	c := a.catalog.Get()
	w.Header().Set("Cache-Control", "no-cache")
	httpx.WriteJSON(w, http.StatusOK, catalogDocumentResponse{
		ExchangeRate: c.Rate,
		Products:     toAPIProducts(c.Products),
		Notice:       c.Notice,
	})
}
