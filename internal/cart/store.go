package cart

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"finitefield.org/mercadito/internal/platform/requestctx"
)

// Store persists one browser's cart.
type Store interface {
	Load(ctx context.Context) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Clear(ctx context.Context) error
}

// Backend opens the Store for the browser making the request. sessionID is
// the stable id from the session cookie.
type Backend interface {
	Open(w http.ResponseWriter, r *http.Request, sessionID string) Store
	Name() string
}

// decodeStored turns persisted bytes into a cart, logging and discarding malformed data.
func decodeStored(ctx context.Context, backend string, raw []byte) *Cart {
	c, err := Decode(raw)
	if err != nil {
		if errors.Is(err, ErrMalformed) {
			requestctx.Logger(ctx).Debug("discarding malformed cart",
				zap.String("backend", backend),
				zap.Error(err),
			)
		}
		return New()
	}
	return c
}
