package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHonorsQValues(t *testing.T) {
	b, err := Load("../../locales", "es", []string{"es", "en"})
	require.NoError(t, err)

	assert.Equal(t, "en", b.Resolve("es;q=0.8, en;q=0.9"))
	assert.Equal(t, "es", b.Resolve("es-VE,es;q=0.9,en;q=0.8"))
	assert.Equal(t, "en", b.Resolve("fr-FR, en-US;q=0.7"))
	assert.Equal(t, "es", b.Resolve("de"))
	assert.Equal(t, "es", b.Resolve(""))
	assert.Equal(t, "es", b.Resolve(";;;q=abc"))
}

func TestTranslationsFallBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "es.json"), []byte(`{"cart.title":"Carrito","items.one":"{n} producto","items.other":"{n} productos","pay":"Paga {amount}"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.json"), []byte(`{"cart.title":"Cart"}`), 0o600))

	b, err := Load(dir, "es", []string{"es", "en"})
	require.NoError(t, err)

	assert.Equal(t, "Cart", b.T("en", "cart.title"))
	assert.Equal(t, "Carrito", b.T("fr", "cart.title"))
	assert.Equal(t, "1 producto", b.Plural("en", "items", 1))
	assert.Equal(t, "3 productos", b.Plural("es", "items", 3))
	assert.Equal(t, "missing.key", b.T("es", "missing.key"))
	assert.Equal(t, "Paga 3", b.Format("es", "pay", map[string]string{"amount": "3"}))
	assert.Equal(t, []string{"en", "es"}, b.Supported())
}

func TestLoadRequiresFallback(t *testing.T) {
	_, err := Load(t.TempDir(), "es", []string{"es", "en"})
	assert.Error(t, err)
}
