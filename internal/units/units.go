// Package units converts between decimal ether amounts and wei, and formats
// amounts and addresses for display.
package units

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Decimals is the number of fractional digits in one ether
const Decimals = 18

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// ParseEther converts a decimal ether string such as "0.05" into wei.
// The conversion is exact; more than 18 fractional digits is an error.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("amount cannot be negative")
	}
	s = strings.TrimPrefix(s, "+")

	whole, frac, hasDot := strings.Cut(s, ".")
	if hasDot && whole == "" && frac == "" {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}
	if len(frac) > Decimals {
		return nil, fmt.Errorf("amount has more than %d fractional digits", Decimals)
	}

	digits := whole + frac + strings.Repeat("0", Decimals-len(frac))
	wei, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}
	return wei, nil
}

// FormatEther renders wei as a decimal ether string with trailing zeros
// trimmed, e.g. 50000000000000000 -> "0.05".
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}

	neg := wei.Sign() < 0
	abs := new(big.Int).Abs(wei)
	whole, frac := new(big.Int).QuoRem(abs, weiPerEther, new(big.Int))

	out := whole.String()
	if frac.Sign() != 0 {
		fs := frac.String()
		fs = strings.Repeat("0", Decimals-len(fs)) + fs
		out += "." + strings.TrimRight(fs, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}

// FormatCurrency renders an amount with the given number of fractional
// digits. A decimal string that already has no more than decimals fractional
// digits is returned unchanged; anything else is rounded to exactly decimals
// places. Empty and zero-valued floats render as "0".
func FormatCurrency(value any, decimals int) (string, error) {
	if decimals < 0 {
		return "", fmt.Errorf("decimals must not be negative")
	}

	var r *big.Rat
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return "0", nil
		}
		if _, frac, ok := strings.Cut(s, "."); ok && len(frac) <= decimals && isNumeric(s) {
			return s, nil
		}
		var ok bool
		r, ok = new(big.Rat).SetString(s)
		if !ok {
			return "", fmt.Errorf("invalid amount: %q", v)
		}
	case float64:
		if v == 0 {
			return "0", nil
		}
		return strconv.FormatFloat(v, 'f', decimals, 64), nil
	case int:
		r = new(big.Rat).SetInt64(int64(v))
	case int64:
		r = new(big.Rat).SetInt64(v)
	case *big.Int:
		r = new(big.Rat).SetInt(v)
	case *big.Rat:
		r = v
	default:
		return "", fmt.Errorf("unsupported amount type %T", value)
	}

	return r.FloatString(decimals), nil
}

// FormatAddress shortens an address for display, keeping start leading and
// end trailing characters: 0x742d...f44e.
func FormatAddress(address string, start, end int) string {
	if start < 0 || end < 0 || len(address) <= start+end {
		return address
	}
	return address[:start] + "..." + address[len(address)-end:]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	s = strings.TrimPrefix(s, "-")
	whole, frac, ok := strings.Cut(s, ".")
	if !isDigits(whole) {
		return false
	}
	return !ok || isDigits(frac)
}
