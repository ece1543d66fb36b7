package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"finitefield.org/mercadito/internal/platform/requestctx"
)

const (
	defaultSessionCookie   = "mercadito_session"
	defaultSessionLifetime = 30 * 24 * time.Hour
)

// SessionData is the payload kept in the signed session cookie. The ID keys
// server-side cart backends.
type SessionData struct {
	ID        string    `json:"id"`
	Locale    string    `json:"locale,omitempty"`
	CSRFToken string    `json:"csrf,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	dirty bool
}

// MarkDirty flags the session for writing before the response is sent.
func (s *SessionData) MarkDirty() {
	s.dirty = true
	s.UpdatedAt = time.Now().UTC()
}

// SessionConfig controls cookie encoding for the session manager.
type SessionConfig struct {
	CookieName string
	HashKey    []byte
	BlockKey   []byte
	Secure     bool
	Lifetime   time.Duration
	Now        func() time.Time
}

// SessionManager reads and writes the session cookie with securecookie.
type SessionManager struct {
	cfg   SessionConfig
	codec *securecookie.SecureCookie
}

// NewSessionManager builds a manager. Without a hash key a process-ephemeral
// key is generated, so sessions reset on restart.
func NewSessionManager(cfg SessionConfig) *SessionManager {
	if cfg.CookieName == "" {
		cfg.CookieName = defaultSessionCookie
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultSessionLifetime
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
	codec.MaxAge(int(cfg.Lifetime.Seconds()))
	return &SessionManager{cfg: cfg, codec: codec}
}

// CookieName returns the session cookie name.
func (m *SessionManager) CookieName() string { return m.cfg.CookieName }

// Secure reports whether cookies carry the Secure attribute.
func (m *SessionManager) Secure() bool { return m.cfg.Secure }

// Middleware loads or initializes a session and stores it in request context.
func (m *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sd, fromCookie := m.read(r)
		if sd.ID == "" {
			now := m.cfg.Now().UTC()
			sd = &SessionData{ID: ulid.Make().String(), CreatedAt: now, UpdatedAt: now, CSRFToken: newCSRFToken()}
			sd.dirty = true
		}

		rw := NewResponseRecorder(w)
		rw.SetBeforeWrite(func(w http.ResponseWriter) {
			if sd.dirty || !fromCookie {
				m.write(w, r, sd)
			}
		})
		ctx := requestctx.WithSession(WithSession(r.Context(), sd), sd.ID)
		next.ServeHTTP(rw, r.WithContext(ctx))
		if !rw.Wrote() && (sd.dirty || !fromCookie) {
			m.write(w, r, sd)
		}
	})
}

func (m *SessionManager) read(r *http.Request) (*SessionData, bool) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil || c.Value == "" {
		return &SessionData{}, false
	}
	var sd SessionData
	if err := m.codec.Decode(m.cfg.CookieName, c.Value, &sd); err != nil {
		requestctx.Logger(r.Context()).Debug("session cookie rejected", zap.Error(err))
		return &SessionData{}, false
	}
	return &sd, true
}

func (m *SessionManager) write(w http.ResponseWriter, r *http.Request, sd *SessionData) {
	encoded, err := m.codec.Encode(m.cfg.CookieName, sd)
	if err != nil {
		requestctx.Logger(r.Context()).Warn("session cookie encode failed", zap.Error(err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  m.cfg.Now().Add(m.cfg.Lifetime).UTC(),
		MaxAge:   int(m.cfg.Lifetime.Seconds()),
	})
	sd.dirty = false
}

// GetSession returns session data from context
func GetSession(r *http.Request) *SessionData {
	if v := r.Context().Value(ctxKeySession); v != nil {
		if sd, ok := v.(*SessionData); ok {
			return sd
		}
	}
	return &SessionData{}
}

// SessionID returns the current session id, empty when no session middleware ran.
func SessionID(r *http.Request) string {
	return GetSession(r).ID
}
