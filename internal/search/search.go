// Package search implements the accent and case insensitive product filter.
package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"finitefield.org/mercadito/internal/catalog"
)

// Normalize folds text for matching: lower case, NFD with combining marks
// removed, hyphens turned into spaces, whitespace runs collapsed and trimmed.
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	// transform.Chain carries state, so each call builds its own. Every
	// nonspacing mark (category Mn) is dropped, not only U+0300..U+036F.
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(folder, lowered)
	if err != nil {
		folded = lowered
	}
	folded = strings.ReplaceAll(folded, "-", " ")
	return strings.Join(strings.Fields(folded), " ")
}

// Terms splits a query into normalized words. An empty query yields no terms.
func Terms(query string) []string {
	normalized := Normalize(query)
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, " ")
}

// Match reports whether every term is a substring of the normalized name.
func Match(name string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	normalized := Normalize(name)
	for _, term := range terms {
		if !strings.Contains(normalized, term) {
			return false
		}
	}
	return true
}

// Filter returns the products whose names match query, keeping their order.
func Filter(products []catalog.Product, query string) []catalog.Product {
	terms := Terms(query)
	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if Match(p.Name, terms) {
			out = append(out, p)
		}
	}
	return out
}
