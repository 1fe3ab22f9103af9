package channel

import "strings"

// NormalizePhone reduces raw to digits prefixed with countryCode. Numbers
// already carrying the code are kept, a leading trunk 0 is replaced and
// anything else gets the code prepended. Empty input stays empty.
func NormalizePhone(raw, countryCode string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, countryCode):
		return digits
	case strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	}
	return countryCode + digits
}
