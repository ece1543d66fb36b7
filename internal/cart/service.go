package cart

import (
	"context"
	"fmt"
)

// Catalog is the part of the product catalog mutations need.
type Catalog interface {
	Has(id int) bool
}

// Increment loads the cart, changes the quantity of id by delta and persists
// the result. Unknown products are rejected with ErrUnknownProduct.
func Increment(ctx context.Context, store Store, products Catalog, id, delta int) (*Cart, error) {
	if products == nil || !products.Has(id) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, id)
	}
	c, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.Add(id, delta)
	if err := store.Save(ctx, c); err != nil {
		return nil, err
	}
	op := "increment"
	if delta < 0 {
		op = "decrement"
	}
	recordMutation(ctx, op)
	return c, nil
}

// Remove drops id from the persisted cart. Ids that are neither in the cart
// nor in the catalog are rejected; stale entries can still be removed.
func Remove(ctx context.Context, store Store, products Catalog, id int) (*Cart, error) {
	c, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !c.Contains(id) && (products == nil || !products.Has(id)) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, id)
	}
	c.Remove(id)
	if err := store.Save(ctx, c); err != nil {
		return nil, err
	}
	recordMutation(ctx, "remove")
	return c, nil
}

// Checkout empties the cart and its persisted state.
func Checkout(ctx context.Context, store Store) (*Cart, error) {
	if err := store.Clear(ctx); err != nil {
		return nil, err
	}
	recordMutation(ctx, "checkout")
	return New(), nil
}
