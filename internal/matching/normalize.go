package matching

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\p{M}_\s]`)

// StripDiacritics transliterates s to its nearest ASCII form: accents are
// dropped and other scripts are romanized ("Фёдор" becomes "Fiodor").
// Input is composed first so decomposed accents map like precomposed ones.
func StripDiacritics(s string) string {
	return unidecode.Unidecode(norm.NFC.String(s))
}

// NormalizeName builds the comparison key for an author name:
// initials of the given and middle names, then surname and suffix, lowercased.
// "J.R.R. Tolkien" and "Tolkien, J. R. R." both produce "jrr tolkien".
func NormalizeName(raw string) string {
	parsed := ParseName(StripDiacritics(raw))

	rest := strings.ReplaceAll(parsed.Given+" "+parsed.Middle, ".", " ")
	var initials strings.Builder
	for _, token := range strings.Fields(rest) {
		r := []rune(token)
		initials.WriteRune(r[0])
	}

	key := initials.String() + " " + parsed.Surname + " " + parsed.Suffix
	return strings.ToLower(strings.Join(strings.Fields(key), " "))
}

// NormalizeTitle lowercases a title and strips punctuation
func NormalizeTitle(raw string) string {
	s := strings.ToLower(raw)
	s = nonWordRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// NameMatch scores two author names, ignoring token order
func NameMatch(a, b string) float64 {
	return TokenSortRatio(NormalizeName(a), NormalizeName(b))
}

// TitleMatch scores two titles, tolerating extra or missing words
func TitleMatch(a, b string) float64 {
	return TokenSetRatio(NormalizeTitle(a), NormalizeTitle(b))
}
