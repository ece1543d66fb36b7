// Package i18n loads flat JSON translation bundles and resolves request locales.
package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Bundle holds translations per language with a fallback language.
type Bundle struct {
	dict      map[string]map[string]string
	fallback  string
	supported map[string]struct{}
}

// Load reads <dir>/<lang>.json for each supported language. Only the fallback
// file is required.
func Load(dir string, fallback string, supported []string) (*Bundle, error) {
	b := &Bundle{
		dict:      map[string]map[string]string{},
		fallback:  fallback,
		supported: map[string]struct{}{},
	}
	if len(supported) == 0 {
		supported = []string{"es", "en"}
	}
	for _, l := range supported {
		b.supported[l] = struct{}{}
		raw, err := os.ReadFile(filepath.Join(dir, l+".json"))
		if err != nil {
			if l == fallback {
				return nil, fmt.Errorf("load locale %s: %w", l, err)
			}
			continue
		}
		var m map[string]string
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", l, err)
		}
		b.dict[l] = m
	}
	if _, ok := b.dict[fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %s not loaded", fallback)
	}
	return b, nil
}

// Supported lists the configured languages in lexical order.
func (b *Bundle) Supported() []string {
	out := make([]string, 0, len(b.supported))
	for k := range b.supported {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fallback returns the configured fallback language.
func (b *Bundle) Fallback() string { return b.fallback }

// IsSupported reports whether lang has been configured.
func (b *Bundle) IsSupported(lang string) bool {
	_, ok := b.supported[lang]
	return ok
}

// T returns the translation for key in lang, falling back to the default
// language and finally to the key itself.
func (b *Bundle) T(lang, key string) string {
	if m, ok := b.dict[lang]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := b.dict[b.fallback]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}

// Plural picks "<key>.one" or "<key>.other" and replaces {n} with n.
func (b *Bundle) Plural(lang, key string, n int) string {
	form := key + ".other"
	if n == 1 {
		form = key + ".one"
	}
	return strings.ReplaceAll(b.T(lang, form), "{n}", strconv.Itoa(n))
}

// Format replaces {name} placeholders in the translation of key.
func (b *Bundle) Format(lang, key string, args map[string]string) string {
	msg := b.T(lang, key)
	for name, value := range args {
		msg = strings.ReplaceAll(msg, "{"+name+"}", value)
	}
	return msg
}

// Resolve chooses the best supported base language from an Accept-Language
// header, honouring q values and header order.
func (b *Bundle) Resolve(acceptLang string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLang)
	if err != nil {
		return b.fallback
	}
	// ParseAcceptLanguage already sorts by q, keeping header order on ties.
	for _, tag := range tags {
		base, _ := tag.Base()
		if lang := strings.ToLower(base.String()); b.IsSupported(lang) {
			return lang
		}
	}
	return b.fallback
}
