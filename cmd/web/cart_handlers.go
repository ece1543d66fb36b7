package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"finitefield.org/mercadito/internal/cart"
	mw "finitefield.org/mercadito/internal/middleware"
	"finitefield.org/mercadito/internal/platform/httpx"
	"finitefield.org/mercadito/internal/platform/requestctx"
	"finitefield.org/mercadito/internal/totals"
	"finitefield.org/mercadito/internal/view"
)

// cartChangedEvent tells the page to refresh the product list quantities.
const cartChangedEvent = "cart:changed"

func (a *app) cartPanel(r *http.Request, items *cart.Cart) view.CartPanel {
	panel := view.BuildCart(a.catalog.Get(), items, a.viewOptions(r))
	panel.CSRFToken = mw.CSRFToken(r)
	return panel
}

// cartFrag renders the cart sidebar fragment.
func (a *app) cartFrag(w http.ResponseWriter, r *http.Request) {
	items, _ := a.loadCart(w, r)
	a.templates.render(w, r, http.StatusOK, "frag_cart", a.cartPanel(r, items))
}

func (a *app) cartIncrement(w http.ResponseWriter, r *http.Request) {
	a.mutateCart(w, r, func(ctx context.Context, store cart.Store, id int) (*cart.Cart, error) {
		return cart.Increment(ctx, store, a.catalog.Get(), id, 1)
	})
}

func (a *app) cartDecrement(w http.ResponseWriter, r *http.Request) {
	a.mutateCart(w, r, func(ctx context.Context, store cart.Store, id int) (*cart.Cart, error) {
		return cart.Increment(ctx, store, a.catalog.Get(), id, -1)
	})
}

func (a *app) cartRemove(w http.ResponseWriter, r *http.Request) {
	a.mutateCart(w, r, func(ctx context.Context, store cart.Store, id int) (*cart.Cart, error) {
		return cart.Remove(ctx, store, a.catalog.Get(), id)
	})
}

func (a *app) cartCheckout(w http.ResponseWriter, r *http.Request) {
	store := a.carts.Open(w, r, mw.SessionID(r))
	items, err := cart.Checkout(r.Context(), store)
	if err != nil {
		a.cartError(w, r, err)
		return
	}
	requestctx.Logger(r.Context()).Info("cart checked out")
	a.respondCart(w, r, items)
}

func (a *app) mutateCart(w http.ResponseWriter, r *http.Request, op func(context.Context, cart.Store, int) (*cart.Cart, error)) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		mw.WriteError(w, r, http.StatusBadRequest, "invalid product id")
		return
	}
	store := a.carts.Open(w, r, mw.SessionID(r))
	items, err := op(r.Context(), store, id)
	if err != nil {
		a.cartError(w, r, err)
		return
	}
	a.respondCart(w, r, items)
}

// respondCart answers htmx with the cart fragment and a change event, and
// plain form posts with a redirect back to the page.
func (a *app) respondCart(w http.ResponseWriter, r *http.Request, items *cart.Cart) {
	if !mw.IsHTMX(r.Context()) {
		target := "/"
		if q := r.URL.Query().Get("q"); q != "" {
			target = view.SearchURL(q)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	mw.Trigger(w, map[string]any{
		cartChangedEvent: map[string]int{
			"count":    items.TotalQuantity(),
			"distinct": items.Len(),
		},
	})
	a.templates.render(w, r, http.StatusOK, "frag_cart", a.cartPanel(r, items))
}

func (a *app) cartError(w http.ResponseWriter, r *http.Request, err error) {
	lang := mw.Lang(r)
	if errors.Is(err, cart.ErrUnknownProduct) {
		mw.WriteError(w, r, http.StatusNotFound, a.bundle.T(lang, "error.not_found"))
		return
	}
	requestctx.Logger(r.Context()).Error("cart update failed", zap.String("backend", a.carts.Name()), zap.Error(err))
	mw.WriteError(w, r, http.StatusServiceUnavailable, a.bundle.T(lang, "error.generic"))
}

type apiCartLine struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type apiChange struct {
	Up     decimal.Decimal `json:"up"`
	Down   decimal.Decimal `json:"down"`
	Owed   decimal.Decimal `json:"owed"`
	Return decimal.Decimal `json:"return"`
}

type apiCartResponse struct {
	Items         map[int]int     `json:"items"`
	Lines         []apiCartLine   `json:"lines"`
	Distinct      int             `json:"distinct"`
	TotalQuantity int             `json:"total_quantity"`
	TotalWeight   float64         `json:"total_weight_grams"`
	TotalLocal    decimal.Decimal `json:"total_local"`
	TotalForeign  decimal.Decimal `json:"total_foreign"`
	Rate          decimal.Decimal `json:"exchange_rate"`
	Change        *apiChange      `json:"change"`
}

// apiCart returns the cart with its totals as JSON.
func (a *app) apiCart(w http.ResponseWriter, r *http.Request) {
	store := a.carts.Open(w, r, mw.SessionID(r))
	items, err := store.Load(r.Context())
	if err != nil {
		requestctx.Logger(r.Context()).Error("cart load failed", zap.Error(err))
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeCartUnavailable, "cart storage unavailable", http.StatusServiceUnavailable))
		return
	}
	sum := totals.Compute(a.catalog.Get(), items)
	resp := apiCartResponse{
		Items:         items.Items(),
		Lines:         make([]apiCartLine, 0, len(sum.Lines)),
		Distinct:      sum.Distinct,
		TotalQuantity: sum.TotalQuantity,
		TotalWeight:   sum.TotalWeight,
		TotalLocal:    sum.Local.Round(2),
		TotalForeign:  sum.Foreign.Round(2),
		Rate:          sum.Rate,
	}
	for _, line := range sum.Lines {
		resp.Lines = append(resp.Lines, apiCartLine{
			ID:        line.Product.ID,
			Name:      line.Product.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.Product.Price,
			LineTotal: line.LineTotal,
		})
	}
	if sum.Change != nil {
		resp.Change = &apiChange{Up: sum.Change.Up, Down: sum.Change.Down, Owed: sum.Change.Owed, Return: sum.Change.Return}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
