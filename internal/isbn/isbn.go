package isbn

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidIdentifier is returned when an ISBN has the wrong length or charset
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Prefix is the only ISBN-13 registration prefix with an ISBN-10 equivalent
const Prefix = "978"

// Normalize removes hyphens and spaces from an ISBN
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSpace(s)
	// Handle URN format
	if strings.HasPrefix(strings.ToLower(s), "urn:isbn:") {
		s = s[len("urn:isbn:"):]
	}
	if strings.HasSuffix(s, "x") {
		s = strings.TrimSuffix(s, "x") + "X"
	}
	return s
}

// ISBN10To13 converts an ISBN-10 to its 978-prefixed ISBN-13 form.
// The source check character is discarded and recomputed for the new form.
func ISBN10To13(isbn10 string) (string, error) {
	s := Normalize(isbn10)
	if len(s) != 10 {
		return "", fmt.Errorf("%w: ISBN-10 must be 10 characters, got %d", ErrInvalidIdentifier, len(s))
	}
	if !allDigits(s[:9]) || !isCheck10(s[9]) {
		return "", fmt.Errorf("%w: malformed ISBN-10 %q", ErrInvalidIdentifier, s)
	}

	core := Prefix + s[:9]
	return core + string(checkDigit13(core)), nil
}

// ISBN13To10 converts an ISBN-13 to ISBN-10. The boolean is false, with a nil
// error, when the prefix is not 978 and no ISBN-10 exists.
func ISBN13To10(isbn13 string) (string, bool, error) {
	s := Normalize(isbn13)
	if len(s) != 13 || !allDigits(s) {
		return "", false, fmt.Errorf("%w: ISBN-13 must be 13 digits, got %q", ErrInvalidIdentifier, s)
	}
	if !strings.HasPrefix(s, Prefix) {
		return "", false, nil
	}

	core := s[3:12]
	return core + string(checkDigit10(core)), true, nil
}

// Validate10 reports whether s is a well-formed ISBN-10 with a correct check character
func Validate10(s string) bool {
	s = Normalize(s)
	if len(s) != 10 || !allDigits(s[:9]) || !isCheck10(s[9]) {
		return false
	}
	return checkDigit10(s[:9]) == s[9]
}

// Validate13 reports whether s is a well-formed ISBN-13 with a correct check digit
func Validate13(s string) bool {
	s = Normalize(s)
	if len(s) != 13 || !allDigits(s) {
		return false
	}
	return checkDigit13(s[:12]) == s[12]
}

// Backfill fills whichever identifier is empty from the one that is present.
// A present value is never overwritten and conversion failures leave the
// missing side empty.
func Backfill(isbn10, isbn13 string) (string, string) {
	switch {
	case isbn10 != "" && isbn13 == "":
		if converted, err := ISBN10To13(isbn10); err == nil {
			isbn13 = converted
		}
	case isbn13 != "" && isbn10 == "":
		if converted, ok, err := ISBN13To10(isbn13); err == nil && ok {
			isbn10 = converted
		}
	}
	return isbn10, isbn13
}

// checkDigit13 computes the check digit for a 12-digit core using weights 1 and 3
func checkDigit13(core string) byte {
	sum := 0
	for i := 0; i < len(core); i++ {
		d := int(core[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += 3 * d
		}
	}
	return byte('0' + (10-sum%10)%10)
}

// checkDigit10 computes the check character for a 9-digit core using weights 10 down to 2
func checkDigit10(core string) byte {
	sum := 0
	for i := 0; i < len(core); i++ {
		sum += (10 - i) * int(core[i]-'0')
	}
	switch check := 11 - sum%11; check {
	case 10:
		return 'X'
	case 11:
		return '0'
	default:
		return byte('0' + check)
	}
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isCheck10(c byte) bool {
	return (c >= '0' && c <= '9') || c == 'X'
}
