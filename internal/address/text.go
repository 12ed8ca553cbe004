package address

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`[\t\f\v]+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^\s*[_\-=|]{3,}\s*$`)
)

// NormalizeOCRText collapses noisy whitespace in engine output.
// Line breaks are kept; more than two newlines collapse to one blank line.
func NormalizeOCRText(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFKC.String(s)
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reBoxNoise.ReplaceAllString(s, "")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Clean folds text to a single line of address-safe characters.
func Clean(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case strings.ContainsRune(",.#-/'&", r):
			return r
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Tokenize splits OCR text into whitespace-separated tokens.
func Tokenize(s string) []string {
	return strings.Fields(NormalizeOCRText(s))
}

// collapse trims and joins internal whitespace.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
