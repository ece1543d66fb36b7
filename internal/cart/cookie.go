package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	"finitefield.org/mercadito/internal/platform/requestctx"
)

// CookieConfig controls the signed cart cookie.
type CookieConfig struct {
	Name     string
	HashKey  []byte
	BlockKey []byte
	TTL      time.Duration
	Secure   bool
	Now      func() time.Time
}

// CookieBackend stores the cart inside a signed cookie, so it lives with the
// browser like local storage would.
type CookieBackend struct {
	cfg   CookieConfig
	codec *securecookie.SecureCookie
}

// NewCookieBackend constructs the cookie backend. A random hash key is used
// when none is configured, which invalidates carts on restart.
func NewCookieBackend(cfg CookieConfig) *CookieBackend {
	if cfg.Name == "" {
		cfg.Name = "mercadito-cart"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	hashKey := cfg.HashKey
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
	}
	codec := securecookie.New(hashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.TTL.Seconds()))
	return &CookieBackend{cfg: cfg, codec: codec}
}

// Name implements Backend.
func (b *CookieBackend) Name() string { return "cookie" }

// Open implements Backend.
func (b *CookieBackend) Open(w http.ResponseWriter, r *http.Request, _ string) Store {
	return &cookieStore{backend: b, w: w, r: r}
}

type cookieStore struct {
	backend *CookieBackend
	w       http.ResponseWriter
	r       *http.Request

	// written holds the cart saved during this request, since r still carries the old cookie.
	written *Cart
}

func (s *cookieStore) Load(ctx context.Context) (*Cart, error) {
	if s.written != nil {
		return s.written.Clone(), nil
	}
	cookie, err := s.r.Cookie(s.backend.cfg.Name)
	if err != nil || cookie.Value == "" {
		return New(), nil
	}
	var raw json.RawMessage
	if err := s.backend.codec.Decode(s.backend.cfg.Name, cookie.Value, &raw); err != nil {
		requestctx.Logger(ctx).Debug("discarding unreadable cart cookie", zap.Error(err))
		return New(), nil
	}
	return decodeStored(ctx, s.backend.Name(), raw), nil
}

func (s *cookieStore) Save(ctx context.Context, c *Cart) error {
	if c.IsEmpty() {
		return s.Clear(ctx)
	}
	raw, err := c.Encode()
	if err != nil {
		return err
	}
	encoded, err := s.backend.codec.Encode(s.backend.cfg.Name, json.RawMessage(raw))
	if err != nil {
		return fmt.Errorf("cart: encode cookie: %w", err)
	}
	cfg := s.backend.cfg
	http.SetCookie(s.w, &http.Cookie{
		Name:     cfg.Name,
		Value:    encoded,
		Path:     "/",
		Expires:  cfg.Now().Add(cfg.TTL).UTC(),
		MaxAge:   int(cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.written = c.Clone()
	return nil
}

func (s *cookieStore) Clear(_ context.Context) error {
	cfg := s.backend.cfg
	http.SetCookie(s.w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.written = New()
	return nil
}
