package matching

import (
	"strings"
)

// ParsedName holds the components of a personal name
type ParsedName struct {
	Salutation string `json:"salutation,omitempty"`
	Given      string `json:"given,omitempty"`
	Middle     string `json:"middle,omitempty"`
	Surname    string `json:"surname,omitempty"`
	Suffix     string `json:"suffix,omitempty"`
}

// NameParser splits a display name into its components
type NameParser interface {
	Parse(name string) ParsedName
}

// DefaultParser is the parser used by NormalizeName and ParseName
var DefaultParser NameParser = simpleParser{}

// ParseName splits a name using the default parser
func ParseName(name string) ParsedName {
	return DefaultParser.Parse(name)
}

var salutations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "dr": true, "sir": true,
	"dame": true, "lord": true, "lady": true, "prof": true, "rev": true, "fr": true,
}

var suffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "v": true,
	"phd": true, "md": true, "esq": true, "obe": true, "kbe": true,
}

// Lowercase particles that belong to the surname ("Le Guin", "van Gogh")
var particles = map[string]bool{
	"de": true, "del": true, "della": true, "der": true, "van": true, "von": true,
	"la": true, "le": true, "du": true, "di": true, "da": true, "st": true, "st.": true,
}

type simpleParser struct{}

func (simpleParser) Parse(name string) ParsedName {
	var p ParsedName

	name = uninvert(strings.TrimSpace(name))
	tokens := strings.Fields(strings.ReplaceAll(name, ",", " "))

	for len(tokens) > 1 && salutations[bare(tokens[0])] {
		p.Salutation = strings.TrimSpace(p.Salutation + " " + tokens[0])
		tokens = tokens[1:]
	}

	var suffix []string
	for len(tokens) > 1 && suffixes[bare(tokens[len(tokens)-1])] {
		suffix = append([]string{strings.TrimSuffix(tokens[len(tokens)-1], ".")}, suffix...)
		tokens = tokens[:len(tokens)-1]
	}
	p.Suffix = strings.Join(suffix, " ")

	switch len(tokens) {
	case 0:
		return p
	case 1:
		p.Surname = tokens[0]
		return p
	}

	start := len(tokens) - 1
	for start > 1 && particles[strings.ToLower(tokens[start-1])] {
		start--
	}

	p.Given = tokens[0]
	p.Middle = strings.Join(tokens[1:start], " ")
	p.Surname = strings.Join(tokens[start:], " ")
	return p
}

// uninvert turns "Surname, Given" into "Given Surname". A trailing
// ", Jr." style suffix is not treated as an inversion.
func uninvert(name string) string {
	parts := strings.Split(name, ",")
	if len(parts) < 2 {
		return name
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[1] == "" || allSuffixes(parts[1]) {
		return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	}

	rebuilt := append([]string{parts[1], parts[0]}, parts[2:]...)
	return strings.Join(strings.Fields(strings.Join(rebuilt, " ")), " ")
}

func allSuffixes(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !suffixes[bare(f)] {
			return false
		}
	}
	return true
}

// bare lowercases a token and strips trailing punctuation
func bare(token string) string {
	return strings.ToLower(strings.TrimRight(token, ".,"))
}

// SortName derives the catalog sort key for an author's full name
func SortName(fullName string) string {
	parsed := ParseName(fullName)
	for _, word := range strings.Fields(fullName) {
		if word == "of" || word == "Of" {
			return fullName
		}
	}
	switch {
	case parsed.Given == "Unknown":
		return "ZZ Author"
	case parsed.Surname == "Various":
		return "Z Author"
	}
	return strings.TrimSpace(parsed.Surname + " " + parsed.Given)
}
