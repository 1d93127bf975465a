// internal/utils/phone.go
package utils

import (
	"errors"
	"strings"
)

// NormalizePhone converts a user-entered phone number to E.164-style
// international format. Numbers already carrying a leading "+" pass through
// with formatting characters stripped. Exactly ten digits are assumed to be
// a national number in the default country; eleven digits already starting
// with the default country code just gain the "+" prefix.
func NormalizePhone(raw, defaultCountryCode string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("phone number is empty")
	}

	if defaultCountryCode == "" {
		defaultCountryCode = "1"
	}

	if strings.HasPrefix(trimmed, "+") {
		digits := stripNonDigits(trimmed[1:])
		if len(digits) < 8 {
			return "", errors.New("phone number is too short")
		}
		return "+" + digits, nil
	}

	digits := stripNonDigits(trimmed)
	switch {
	case len(digits) == 10:
		return "+" + defaultCountryCode + digits, nil
	case len(digits) == 10+len(defaultCountryCode) && strings.HasPrefix(digits, defaultCountryCode):
		return "+" + digits, nil
	case len(digits) < 10:
		return "", errors.New("phone number is too short")
	default:
		return "+" + digits, nil
	}
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
