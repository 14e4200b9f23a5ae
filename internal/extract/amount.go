package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var amountToken = regexp.MustCompile(`[\d.,]+`)

// CleanAmount pulls the first numeric token out of a price string and parses
// it. Commas are treated as thousands separators first; if that fails the
// token is re-read with dot as the thousands separator and comma as the
// decimal point, which covers most locale variants seen in the wild.
func CleanAmount(s string) *float64 {
	if s == "" {
		return nil
	}
	tok := amountToken.FindString(s)
	if tok == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", ""), 64); err == nil {
		return &f
	}
	alt := strings.ReplaceAll(tok, ".", "")
	alt = strings.ReplaceAll(alt, ",", ".")
	if f, err := strconv.ParseFloat(alt, 64); err == nil {
		return &f
	}
	return nil
}
