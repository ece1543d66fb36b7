package catalog

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortByName orders products alphabetically using Spanish collation rules, so
// accented names sort next to their unaccented forms. Ties keep document order.
func SortByName(products []Product) {
	col := collate.New(language.Spanish, collate.IgnoreCase)
	sort.SliceStable(products, func(i, j int) bool {
		return col.CompareString(products[i].Name, products[j].Name) < 0
	})
}
