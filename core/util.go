package core

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var (
	digits   = "0123456789"
	alphaNum = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

	phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanPhone trims `s` and removes the spaces, dashes, dots and parentheses grouping its digits.
func CleanPhone(s string) string {
	return phoneSeparators.Replace(strings.TrimSpace(s))
}

// NormalizePhone returns `s` in international form ("+" followed by the calling code and the number).
// Numbers of at most 10 digits, or starting with a single trunk "0", are local to `countryCode`.
func NormalizePhone(s, countryCode string) string {
	s = CleanPhone(s)
	switch {
	case s == "" || strings.HasPrefix(s, "+"):
		return s
	case strings.HasPrefix(s, "00"):
		return "+" + s[2:]
	case countryCode == "":
		return "+" + s
	case strings.HasPrefix(s, "0"):
		return "+" + countryCode + s[1:]
	case len(s) <= 10:
		return "+" + countryCode + s
	}
	return "+" + s
}

// RandomDigits returns a string of n cryptographically random decimal digits.
func RandomDigits(n int) (string, error) {
	return randomString(n, digits)
}

// RandomAlphaNum returns a string of n cryptographically random letters and digits,
// without the characters that are easy to confuse (0/O, 1/l/I).
func RandomAlphaNum(n int) (string, error) {
	return randomString(n, alphaNum)
}

func randomString(n int, charset string) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	max := big.NewInt(int64(len(charset)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(charset[idx.Int64()])
	}
	return sb.String(), nil
}

