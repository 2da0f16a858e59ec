package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"The Hobbit", "hobbit"},
		{"A Tale of Two Cities", "tale of two cities"},
		{"An American Tragedy", "american tragedy"},
		{"  the Silmarillion", "silmarillion"},
		{"Theology", "theology"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SortTitle(tt.input))
		})
	}
}

func TestAuthorDerive(t *testing.T) {
	a := &Author{FullName: "Ursula K. Le Guin"}
	a.Derive()

	assert.Equal(t, "Ursula", a.FirstName)
	assert.Equal(t, "K.", a.MiddleName)
	assert.Equal(t, "Le Guin", a.LastName)
	assert.Equal(t, "Le Guin Ursula", a.SortName)
	assert.Equal(t, "uk le guin", a.MatchName)
}

func TestVolumeDerive(t *testing.T) {
	v := &Volume{Title: "The Hobbit", ISBN10: "0-395-25730-1"}
	v.Derive()

	assert.Equal(t, "0395257301", v.ISBN10)
	assert.Equal(t, "9780395257302", v.ISBN13)
	assert.Equal(t, "hobbit", v.SortTitle)

	v = &Volume{Title: "Kept", ISBN10: "0306406152", ISBN13: "9780395257302"}
	v.Derive()
	assert.Equal(t, "0306406152", v.ISBN10, "present values are never overwritten")
	assert.Equal(t, "9780395257302", v.ISBN13)
}

func TestBookSetDerive(t *testing.T) {
	b := &BookSet{Title: "The Lord of the Rings", ISBN13: "9791234567896"}
	b.Derive()

	assert.Empty(t, b.ISBN10)
	assert.Equal(t, "lord of the rings", b.SortTitle)
}
