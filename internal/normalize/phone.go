package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultCallingCode is prefixed to 10-digit national numbers.
const DefaultCallingCode = "1"

// NormalizePhone returns raw in +<digits> form using DefaultCallingCode.
func NormalizePhone(raw any) string {
	return normalizePhone(raw, DefaultCallingCode)
}

// normalizePhone strips formatting noise and applies an international prefix.
// It never fails: input without digits is returned trimmed.
func normalizePhone(raw any, callingCode string) string {
	s := strings.TrimSpace(phoneText(raw))
	if s == "" {
		return s
	}

	international := strings.HasPrefix(s, "+")
	digits := normalizePhoneDigits(s)
	if digits == "" {
		return s
	}

	if !international && strings.HasPrefix(s, "00") && len(digits) > 2 {
		digits = digits[2:]
		international = true
	}

	if !international && callingCode != "" {
		switch {
		case len(digits) == 10 && callingCode == "1":
			digits = callingCode + digits
		case len(digits) == 11 && callingCode == "1" && digits[0] == '1':
			// already carries the NANP trunk code
		case len(digits) >= 7 && len(digits) <= 10 && callingCode != "1" && digits[0] == '0':
			digits = callingCode + strings.TrimLeft(digits, "0")
		}
	}

	return "+" + digits
}

// phoneText renders spreadsheet values as text; numeric cells arrive as
// floats and must not be formatted with an exponent.
func phoneText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return strconv.FormatFloat(v, 'f', 0, 64)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return phoneText(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

func normalizePhoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
