package config

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultTemplatesDir     = "templates"
	defaultPublicDir        = "public"
	defaultLocalesDir       = "locales"
	defaultLocale           = "es"
	defaultCatalogSource    = "data/catalog.json"
	defaultCatalogTimeout   = 10 * time.Second
	defaultCartBackend      = "cookie"
	defaultCartCookie       = "mercadito-cart"
	defaultCartTTL          = 30 * 24 * time.Hour
	defaultRedisAddr        = "localhost:6379"
	defaultEnvironment      = "local"
	defaultLocalCurrency    = "VES"
	defaultForeignCurrency  = "USD"
	defaultOfflineCacheName = "mercadito-v2-cache"
)

// DefaultOfflineAssets is the fixed list of static files mirrored for offline use.
var DefaultOfflineAssets = []string{
	"/assets/style.css",
	"/assets/app.js",
	"/assets/icon.svg",
	"/manifest.webmanifest",
}

// Cart storage backends.
const (
	CartBackendCookie = "cookie"
	CartBackendRedis  = "redis"
	CartBackendMemory = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Web         WebConfig
	Catalog     CatalogConfig
	Cart        CartConfig
	Session     SessionConfig
	Currency    CurrencyConfig
	Offline     OfflineConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// WebConfig locates templates, static assets and locale bundles.
type WebConfig struct {
	TemplatesDir  string
	PublicDir     string
	LocalesDir    string
	DefaultLocale string
	DevMode       bool
}

// CatalogConfig points at the product document loaded at startup.
type CatalogConfig struct {
	Source  string
	Timeout time.Duration
}

// CartConfig selects where carts are persisted.
type CartConfig struct {
	Backend    string
	CookieName string
	TTL        time.Duration
	Redis      RedisConfig
}

// RedisConfig holds connection settings for the redis cart backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SessionConfig carries the securecookie keys. Keys are hex encoded in the environment.
type SessionConfig struct {
	HashKey  []byte
	BlockKey []byte
	Secure   bool
}

// CurrencyConfig names the local and foreign currencies shown in totals.
type CurrencyConfig struct {
	Local   string
	Foreign string
}

// OfflineConfig controls the asset cache and the generated service worker.
type OfflineConfig struct {
	CacheName string
	Assets    []string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides
// and environment variables.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	port := stringWithDefault(lookup, "MERCADITO_PORT", "")
	if port == "" {
		// Cloud Run style platforms only set PORT.
		port = stringWithDefault(lookup, "PORT", defaultPort)
	}

	env := strings.ToLower(stringWithDefault(lookup, "MERCADITO_ENV", defaultEnvironment))
	cfg := Config{
		Environment: env,
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     durationWithDefault(lookup, "MERCADITO_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "MERCADITO_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "MERCADITO_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "MERCADITO_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Web: WebConfig{
			TemplatesDir:  stringWithDefault(lookup, "MERCADITO_TEMPLATES_DIR", defaultTemplatesDir),
			PublicDir:     stringWithDefault(lookup, "MERCADITO_PUBLIC_DIR", defaultPublicDir),
			LocalesDir:    stringWithDefault(lookup, "MERCADITO_LOCALES_DIR", defaultLocalesDir),
			DefaultLocale: strings.ToLower(stringWithDefault(lookup, "MERCADITO_DEFAULT_LOCALE", defaultLocale)),
			DevMode:       boolWithDefault(lookup, "MERCADITO_DEV", false),
		},
		Catalog: CatalogConfig{
			Source:  stringWithDefault(lookup, "MERCADITO_CATALOG_SOURCE", defaultCatalogSource),
			Timeout: durationWithDefault(lookup, "MERCADITO_CATALOG_TIMEOUT", defaultCatalogTimeout),
		},
		Cart: CartConfig{
			Backend:    strings.ToLower(stringWithDefault(lookup, "MERCADITO_CART_BACKEND", defaultCartBackend)),
			CookieName: stringWithDefault(lookup, "MERCADITO_CART_COOKIE", defaultCartCookie),
			TTL:        durationWithDefault(lookup, "MERCADITO_CART_TTL", defaultCartTTL),
			Redis: RedisConfig{
				Addr:     stringWithDefault(lookup, "MERCADITO_REDIS_ADDR", defaultRedisAddr),
				Password: stringWithDefault(lookup, "MERCADITO_REDIS_PASSWORD", ""),
				DB:       intWithDefault(lookup, "MERCADITO_REDIS_DB", 0),
			},
		},
		Session: SessionConfig{
			Secure: env == "prod",
		},
		Currency: CurrencyConfig{
			Local:   strings.ToUpper(stringWithDefault(lookup, "MERCADITO_LOCAL_CURRENCY", defaultLocalCurrency)),
			Foreign: strings.ToUpper(stringWithDefault(lookup, "MERCADITO_FOREIGN_CURRENCY", defaultForeignCurrency)),
		},
		Offline: OfflineConfig{
			CacheName: stringWithDefault(lookup, "MERCADITO_OFFLINE_CACHE_NAME", defaultOfflineCacheName),
			Assets:    csvWithDefault(lookup, "MERCADITO_OFFLINE_ASSETS"),
		},
	}
	if len(cfg.Offline.Assets) == 0 {
		cfg.Offline.Assets = append([]string(nil), DefaultOfflineAssets...)
	}

	var invalid []string
	if cfg.Session.HashKey, err = hexKey(lookup, "MERCADITO_SESSION_HASH_KEY"); err != nil {
		invalid = append(invalid, "Session.HashKey")
	}
	if cfg.Session.BlockKey, err = hexKey(lookup, "MERCADITO_SESSION_BLOCK_KEY"); err != nil {
		invalid = append(invalid, "Session.BlockKey")
	}

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config, invalid []string) error {
	missing := append([]string(nil), invalid...)

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if strings.TrimSpace(cfg.Catalog.Source) == "" {
		missing = append(missing, "Catalog.Source")
	}
	if cfg.Catalog.Timeout <= 0 {
		missing = append(missing, "Catalog.Timeout")
	}
	switch cfg.Cart.Backend {
	case CartBackendCookie, CartBackendMemory:
	case CartBackendRedis:
		if strings.TrimSpace(cfg.Cart.Redis.Addr) == "" {
			missing = append(missing, "Cart.Redis.Addr")
		}
	default:
		missing = append(missing, "Cart.Backend")
	}
	if strings.TrimSpace(cfg.Cart.CookieName) == "" {
		missing = append(missing, "Cart.CookieName")
	}
	if cfg.Cart.TTL <= 0 {
		missing = append(missing, "Cart.TTL")
	}
	if n := len(cfg.Session.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		missing = append(missing, "Session.BlockKey")
	}
	if cfg.Environment == "prod" && len(cfg.Session.HashKey) == 0 {
		missing = append(missing, "Session.HashKey")
	}
	if cfg.Currency.Local == "" || cfg.Currency.Local == cfg.Currency.Foreign {
		missing = append(missing, "Currency.Local")
	}
	if cfg.Currency.Foreign == "" {
		missing = append(missing, "Currency.Foreign")
	}
	if strings.TrimSpace(cfg.Offline.CacheName) == "" {
		missing = append(missing, "Offline.CacheName")
	}
	for _, asset := range cfg.Offline.Assets {
		if !strings.HasPrefix(asset, "/") {
			missing = append(missing, "Offline.Assets")
			break
		}
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(parts[1]), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func hexKey(lookup func(string) (string, bool), key string) ([]byte, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return hex.DecodeString(strings.TrimSpace(raw))
}
