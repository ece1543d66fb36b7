package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleJSON = `{
  "exchange_rate": 36.5,
  "notice": "**Abierto** hasta las 8 <script>alert(1)</script>",
  "products": [
    {"id": 3, "name": "Queso blanco", "weight_grams": 500, "price": 5},
    {"id": 1, "name": "Ñame", "weight_grams": 1000, "price": "10.00"},
    {"id": 2, "name": "Arroz", "weight_grams": 900, "price": 2.35},
    {"id": 4, "name": "Nata", "weight_grams": 250, "price": 3}
  ]
}`

func names(products []Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Name)
	}
	return out
}

func TestDecodeJSONSortsBySpanishCollation(t *testing.T) {
	doc, err := Decode([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	c := New(doc.ExchangeRate, doc.Products)
	assert.Equal(t, []string{"Arroz", "Nata", "Ñame", "Queso blanco"}, names(c.Products))
	assert.True(t, decimal.RequireFromString("36.5").Equal(c.Rate))

	p, err := c.Find(1)
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1000.0, p.WeightGrams)

	_, err = c.Find(99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, c.Has(99))
}

func TestDecodeLegacyKeys(t *testing.T) {
	raw := `{"dolar": 40, "productos": [{"id": 7, "nombre": "Harina PAN", "gramos": 1000, "precio": 1.5}]}`
	doc, err := Decode([]byte(raw), FormatJSON)
	require.NoError(t, err)
	require.NoError(t, doc.Validate())
	require.Len(t, doc.Products, 1)
	assert.Equal(t, "Harina PAN", doc.Products[0].Name)
	assert.Equal(t, 1000.0, doc.Products[0].WeightGrams)
	assert.True(t, doc.ExchangeRate.Equal(decimal.NewFromInt(40)))
}

func TestDecodeYAML(t *testing.T) {
	raw := `
exchange_rate: 36.50
products:
  - id: 1
    name: Café molido
    weight_grams: 250
    price: 4.10
  - id: 2
    name: Azúcar
    weight_grams: 1000
    price: "1.25"
`
	doc, err := Decode([]byte(raw), FormatYAML)
	require.NoError(t, err)
	require.NoError(t, doc.Validate())
	require.Len(t, doc.Products, 2)
	assert.True(t, doc.Products[0].Price.Equal(decimal.RequireFromString("4.10")))
	assert.True(t, doc.ExchangeRate.Equal(decimal.RequireFromString("36.5")))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"products": [`), FormatJSON)
	assert.Error(t, err)

	_, err = Decode([]byte(`{"exchange_rate": 1, "products": [{"id": 1, "name": "Pan"}]}`), FormatJSON)
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, err = Decode([]byte("exchange_rate: abc\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{
			name: "zero rate",
			doc:  Document{ExchangeRate: decimal.Zero},
		},
		{
			name: "duplicate id",
			doc: Document{ExchangeRate: decimal.NewFromInt(1), Products: []Product{
				{ID: 1, Name: "Pan", Price: decimal.NewFromInt(1)},
				{ID: 1, Name: "Queso", Price: decimal.NewFromInt(2)},
			}},
		},
		{
			name: "negative price",
			doc: Document{ExchangeRate: decimal.NewFromInt(1), Products: []Product{
				{ID: 1, Name: "Pan", Price: decimal.NewFromInt(-1)},
			}},
		},
		{
			name: "missing name",
			doc: Document{ExchangeRate: decimal.NewFromInt(1), Products: []Product{
				{ID: 1, Price: decimal.NewFromInt(1)},
			}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.doc.Validate(), ErrInvalidDocument)
		})
	}
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("catalog.yml", ""))
	assert.Equal(t, FormatYAML, DetectFormat("/catalog", "application/yaml; charset=utf-8"))
	assert.Equal(t, FormatJSON, DetectFormat("productos.json", "application/json"))
	assert.Equal(t, FormatJSON, DetectFormat("", ""))
}

func TestRenderNoticeSanitizes(t *testing.T) {
	html, err := RenderNotice("**Abierto** hasta las 8 <script>alert(1)</script>")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>Abierto</strong>")
	assert.NotContains(t, html, "script")

	empty, err := RenderNotice("   ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLoaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o600))

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	holder := &Holder{}
	loader := &Loader{
		Source: NewSource(path, time.Second),
		Holder: holder,
		Logger: zaptest.NewLogger(t),
		Now:    func() time.Time { return fixed },
	}
	assert.False(t, holder.Ready())
	assert.Equal(t, 0, holder.Get().Len())

	loader.Run(context.Background())

	require.True(t, holder.Ready())
	c := holder.Get()
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, path, c.Source)
	assert.Equal(t, fixed, c.LoadedAt)
	assert.Contains(t, c.NoticeHTML, "<strong>Abierto</strong>")
}

func TestLoaderFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte("exchange_rate: 10\nproducts:\n  - {id: 1, name: Pan, weight_grams: 80, price: 0.5}\n"))
	}))
	defer srv.Close()

	src := NewSource(srv.URL+"/catalog", time.Second)
	_, isHTTP := src.(*HTTPSource)
	require.True(t, isHTTP)

	c, err := (&Loader{Source: src}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Pan"}, names(c.Products))
}

func TestLoaderFailureKeepsEmptyCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	holder := &Holder{}
	loader := &Loader{Source: NewSource(srv.URL, time.Second), Holder: holder, Logger: zaptest.NewLogger(t)}
	loader.Run(context.Background())

	assert.False(t, holder.Ready())
	assert.Equal(t, 0, holder.Get().Len())

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidDocument))
}

func TestLoaderRejectsInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"exchange_rate": 0, "products": []}`), 0o600))

	_, err := (&Loader{Source: FileSource{Path: path}}).Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidDocument)
}
