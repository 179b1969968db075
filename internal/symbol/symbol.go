// Package symbol maps user-supplied ticker tokens to the identifiers sent
// to data providers.
package symbol

import (
	"fmt"
	"strconv"
	"strings"
)

// HKSuffix is the exchange suffix given to short numeric codes.
const HKSuffix = ".HK"

// maxHKCode is the exclusive upper bound for numeric codes treated as HK listings.
const maxHKCode = 10000

// Raw is a ticker token as the user supplied it, integer-like or not.
type Raw string

// FromInt builds a Raw from an integer code such as 700.
func FromInt(n int) Raw {
	return Raw(strconv.Itoa(n))
}

// FromAny builds a Raw from a decoded config value. YAML lists mix ints
// (700) and strings ("AAPL"); anything else uses its default formatting.
func FromAny(v any) Raw {
	switch t := v.(type) {
	case Raw:
		return t
	case string:
		return Raw(t)
	case int:
		return FromInt(t)
	case int64:
		return Raw(strconv.FormatInt(t, 10))
	case float64:
		if t == float64(int64(t)) {
			return Raw(strconv.FormatInt(int64(t), 10))
		}
		return Raw(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		return Raw(fmt.Sprint(v))
	}
}

// String returns the token unchanged.
func (r Raw) String() string {
	return string(r)
}

// Normalize returns the canonical query identifier for raw.
//
// Integer codes below 10000 (zero and negatives included) are zero-padded
// to four digits and given the .HK suffix. Other integers are returned as
// typed. Non-numeric tokens containing ".HK" anywhere, in any case, are
// upper-cased; everything else passes through. The suffix check is a
// substring match, so "0700.hkx" becomes "0700.HKX".
func Normalize(raw Raw) string {
	s := string(raw)
	if n, err := strconv.Atoi(s); err == nil {
		if n < maxHKCode {
			return fmt.Sprintf("%04d%s", n, HKSuffix)
		}
		return s
	}

	upper := strings.ToUpper(s)
	if strings.Contains(upper, HKSuffix) {
		return upper
	}
	return s
}

// NormalizeAll normalizes each token, preserving order and duplicates.
func NormalizeAll(raws []Raw) []string {
	out := make([]string, len(raws))
	for i, r := range raws {
		out[i] = Normalize(r)
	}
	return out
}

// ParseList converts CLI arguments or config values into Raw tokens.
func ParseList(values []any) []Raw {
	out := make([]Raw, 0, len(values))
	for _, v := range values {
		out = append(out, FromAny(v))
	}
	return out
}

// FromStrings wraps plain strings as Raw tokens.
func FromStrings(values []string) []Raw {
	out := make([]Raw, len(values))
	for i, v := range values {
		out[i] = Raw(v)
	}
	return out
}
