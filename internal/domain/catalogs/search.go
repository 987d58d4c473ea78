package catalogs

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize prepares text for fuzzy matching: accents are stripped, case is
// folded, punctuation becomes a space and runs of spaces collapse.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = folder.String(stripped)

	var b strings.Builder
	b.Grow(len(stripped))
	space := true
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// NormalizeCode trims and lowercases a product code typed by the operator.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// FilterByDescription keeps products whose description contains query after
// normalization and sorts them by description. An empty query matches nothing.
func FilterByDescription(products []Product, query string) []Product {
	q := Normalize(query)
	if q == "" {
		return nil
	}
	var out []Product
	for _, p := range products {
		if strings.Contains(Normalize(p.Description), q) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Normalize(out[i].Description) < Normalize(out[j].Description)
	})
	return out
}
