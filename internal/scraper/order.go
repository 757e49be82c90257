package scraper

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortByTitle orders records by a locale-aware, case-sensitive collation of
// their titles. Titles the collator considers equal fall back to byte order,
// and identical titles keep their existing relative order.
func SortByTitle(records []Record) {
	// Collators carry scratch buffers and are not safe for concurrent use.
	col := collate.New(language.Und)
	sort.SliceStable(records, func(i, j int) bool {
		return compareTitles(col, records[i].Title, records[j].Title) < 0
	})
}

func compareTitles(col *collate.Collator, a, b string) int {
	if c := col.CompareString(a, b); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
