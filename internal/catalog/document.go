package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Format identifies the serialization of a catalog document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is the decoded, not yet validated catalog payload.
type Document struct {
	ExchangeRate decimal.Decimal
	Products     []Product
	Notice       string
}

// Older documents used spanish keys (dolar, productos, nombre, gramos, precio);
// both spellings are accepted.
type jsonDocument struct {
	ExchangeRate *decimal.Decimal `json:"exchange_rate"`
	Dolar        *decimal.Decimal `json:"dolar"`
	Products     []jsonProduct    `json:"products"`
	Productos    []jsonProduct    `json:"productos"`
	Notice       string           `json:"notice"`
}

type jsonProduct struct {
	ID          int              `json:"id"`
	Name        string           `json:"name"`
	Nombre      string           `json:"nombre"`
	WeightGrams *float64         `json:"weight_grams"`
	Gramos      *float64         `json:"gramos"`
	Price       *decimal.Decimal `json:"price"`
	Precio      *decimal.Decimal `json:"precio"`
}

type yamlDocument struct {
	ExchangeRate string        `yaml:"exchange_rate"`
	Dolar        string        `yaml:"dolar"`
	Products     []yamlProduct `yaml:"products"`
	Productos    []yamlProduct `yaml:"productos"`
	Notice       string        `yaml:"notice"`
}

type yamlProduct struct {
	ID          int      `yaml:"id"`
	Name        string   `yaml:"name"`
	Nombre      string   `yaml:"nombre"`
	WeightGrams *float64 `yaml:"weight_grams"`
	Gramos      *float64 `yaml:"gramos"`
	Price       string   `yaml:"price"`
	Precio      string   `yaml:"precio"`
}

// DetectFormat picks a format from a file name or content type, defaulting to JSON.
func DetectFormat(name, contentType string) Format {
	lowerType := strings.ToLower(contentType)
	if strings.Contains(lowerType, "yaml") {
		return FormatYAML
	}
	lowerName := strings.ToLower(name)
	if strings.HasSuffix(lowerName, ".yaml") || strings.HasSuffix(lowerName, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// Decode parses raw into a Document. It does not validate the content.
func Decode(raw []byte, format Format) (Document, error) {
	switch format {
	case FormatYAML:
		return decodeYAML(raw)
	default:
		return decodeJSON(raw)
	}
}

func decodeJSON(raw []byte) (Document, error) {
	var doc jsonDocument
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("catalog: decode json: %w", err)
	}

	out := Document{Notice: doc.Notice}
	switch {
	case doc.ExchangeRate != nil:
		out.ExchangeRate = *doc.ExchangeRate
	case doc.Dolar != nil:
		out.ExchangeRate = *doc.Dolar
	}

	items := doc.Products
	if len(items) == 0 {
		items = doc.Productos
	}
	out.Products = make([]Product, 0, len(items))
	for i, item := range items {
		price := item.Price
		if price == nil {
			price = item.Precio
		}
		if price == nil {
			return Document{}, fmt.Errorf("%w: product %d has no price", ErrInvalidDocument, i)
		}
		out.Products = append(out.Products, Product{
			ID:          item.ID,
			Name:        firstNonEmpty(item.Name, item.Nombre),
			WeightGrams: firstNumber(item.WeightGrams, item.Gramos),
			Price:       *price,
		})
	}
	return out, nil
}

func decodeYAML(raw []byte) (Document, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("catalog: decode yaml: %w", err)
	}

	out := Document{Notice: doc.Notice}
	if rate := firstNonEmpty(doc.ExchangeRate, doc.Dolar); rate != "" {
		parsed, err := decimal.NewFromString(rate)
		if err != nil {
			return Document{}, fmt.Errorf("%w: exchange rate %q: %v", ErrInvalidDocument, rate, err)
		}
		out.ExchangeRate = parsed
	}

	items := doc.Products
	if len(items) == 0 {
		items = doc.Productos
	}
	out.Products = make([]Product, 0, len(items))
	for i, item := range items {
		rawPrice := firstNonEmpty(item.Price, item.Precio)
		if rawPrice == "" {
			return Document{}, fmt.Errorf("%w: product %d has no price", ErrInvalidDocument, i)
		}
		price, err := decimal.NewFromString(rawPrice)
		if err != nil {
			return Document{}, fmt.Errorf("%w: product %d price %q: %v", ErrInvalidDocument, i, rawPrice, err)
		}
		out.Products = append(out.Products, Product{
			ID:          item.ID,
			Name:        firstNonEmpty(item.Name, item.Nombre),
			WeightGrams: firstNumber(item.WeightGrams, item.Gramos),
			Price:       price,
		})
	}
	return out, nil
}

// Validate checks the invariants a catalog must satisfy before it is published.
func (d Document) Validate() error {
	var problems []string
	if !d.ExchangeRate.IsPositive() {
		problems = append(problems, "exchange_rate must be positive")
	}
	seen := make(map[int]struct{}, len(d.Products))
	for i, p := range d.Products {
		if strings.TrimSpace(p.Name) == "" {
			problems = append(problems, fmt.Sprintf("product %d: name is required", i))
		}
		if p.Price.IsNegative() {
			problems = append(problems, fmt.Sprintf("product %d: negative price", p.ID))
		}
		if p.WeightGrams < 0 {
			problems = append(problems, fmt.Sprintf("product %d: negative weight", p.ID))
		}
		if _, dup := seen[p.ID]; dup {
			problems = append(problems, fmt.Sprintf("product %d: duplicate id", p.ID))
		}
		seen[p.ID] = struct{}{}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(problems, "; "))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func firstNumber(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}
