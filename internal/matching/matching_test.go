package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"dotted initials", "J.R.R. Tolkien", "jrr tolkien"},
		{"inverted with spaced initials", "Tolkien, J. R. R.", "jrr tolkien"},
		{"middle name", "Gabriel García Márquez", "gg marquez"},
		{"surname particle", "Ursula K. Le Guin", "uk le guin"},
		{"suffix after comma", "Martin Luther King, Jr.", "ml king jr"},
		{"salutation", "Dr. Seuss", "seuss"},
		{"single name", "Homer", "homer"},
		{"inverted with diacritics", "Brontë, Charlotte", "c bronte"},
		{"non-decomposing letter", "Juliusz Słowacki", "j slowacki"},
		{"decomposed accent", "Bronte\u0308, Charlotte", "c bronte"},
		{"cyrillic", "Фёдор Достоевский", "f dostoevskii"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestStripDiacriticsIsASCII(t *testing.T) {
	for _, input := range []string{"Фёдор Достоевский", "Søren Kierkegaard", "Ōe Kenzaburō", "Słowacki"} {
		out := StripDiacritics(input)
		for _, r := range out {
			assert.Less(t, r, rune(128), "%q -> %q", input, out)
		}
	}
	assert.Equal(t, "Soren Kierkegaard", StripDiacritics("Søren Kierkegaard"))
}

func TestNameMatchAcrossScripts(t *testing.T) {
	assert.InDelta(t, 100, NameMatch("Фёдор Достоевский", "Fedor Dostoevskii"), 0.01)
	assert.InDelta(t, 100, NameMatch("Достоевский, Фёдор", "Fyodor Dostoevskii"), 0.01)
}

func TestParseName(t *testing.T) {
	got := ParseName("Dr. Ursula K. Le Guin PhD")
	assert.Equal(t, ParsedName{
		Salutation: "Dr.",
		Given:      "Ursula",
		Middle:     "K.",
		Surname:    "Le Guin",
		Suffix:     "PhD",
	}, got)

	got = ParseName("King, Martin Luther, Jr.")
	assert.Equal(t, "Martin", got.Given)
	assert.Equal(t, "Luther", got.Middle)
	assert.Equal(t, "King", got.Surname)
	assert.Equal(t, "Jr", got.Suffix)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, NormalizeTitle("the hobbit"), NormalizeTitle("The Hobbit!"))
	assert.Equal(t, "dont panic a guide", NormalizeTitle("Don't Panic: A Guide"))
	assert.Equal(t, "cien años de soledad", NormalizeTitle("  Cien años de soledad. "))
}

func TestRatio(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical", "abc", "abc", 100},
		{"one substitution", "abcd", "abce", 75},
		{"disjoint", "abc", "xyz", 0},
		{"empty side", "", "abc", 0},
		{"both empty", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Ratio(tt.a, tt.b), 0.01)
		})
	}
}

func TestTokenSortRatio(t *testing.T) {
	assert.InDelta(t, 100, TokenSortRatio("tolkien jrr", "jrr tolkien"), 0.01)
	assert.Less(t, TokenSortRatio("jrr tolkien", "cs lewis"), 50.0)
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"subset scores full", "the hobbit", "the hobbit or there and back again", 100},
		{"reordered", "back again there", "there and back again", 100},
		{"no shared tokens", "abc", "xyz", 0},
		{"partial overlap", "lord rings", "lord flies", 70},
		{"empty", "", "the hobbit", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, TokenSetRatio(tt.a, tt.b), 0.01)
		})
	}
}

func TestNameMatch(t *testing.T) {
	assert.GreaterOrEqual(t, NameMatch("J.R.R. Tolkien", "Tolkien, J. R. R."), AuthorThreshold)
	assert.GreaterOrEqual(t, NameMatch("Charlotte Brontë", "Bronte, Charlotte"), AuthorThreshold)
	assert.Less(t, NameMatch("J.R.R. Tolkien", "C. S. Lewis"), AuthorThreshold)
}

func TestTitleMatch(t *testing.T) {
	assert.InDelta(t, 100, TitleMatch("The Hobbit!", "the hobbit"), 0.01)
	assert.InDelta(t, 100, TitleMatch("The Hobbit", "The Hobbit, or There and Back Again"), 0.01)
	assert.Less(t, TitleMatch("The Hobbit", "The Silmarillion"), WorkThreshold)
}

func TestSortName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"J.R.R. Tolkien", "Tolkien J.R.R."},
		{"Ursula K. Le Guin", "Le Guin Ursula"},
		{"Catherine of Siena", "Catherine of Siena"},
		{"Unknown Author", "ZZ Author"},
		{"Various", "Z Author"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SortName(tt.input))
		})
	}
}
