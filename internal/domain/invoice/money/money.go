// Package money converts human-formatted amount strings into exact integer cents.
// No floating-point intermediate is ever used; currency precision must not drift.
package money

import (
	"fmt"
	"strconv"
	"strings"
)

// Error codes reported by ParseAmount.
const (
	CodeEmptyAmount   = "EMPTY_AMOUNT"
	CodeInvalidFormat = "INVALID_FORMAT"
)

// ParseError describes why an amount string was rejected.
type ParseError struct {
	Code   string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// ParseAmount converts an amount string into signed cents (int64).
// Accepted inputs look like "5", "5.1", "1,234.56", "$10.00", "-12.34" or
// "(12.34)". A leading minus sign or full parenthesis wrapping marks the
// amount negative; currency symbols and thousands separators are stripped
// wherever they appear. Fraction digits beyond the second are discarded,
// never rounded.
func ParseAmount(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, &ParseError{Code: CodeEmptyAmount, Detail: "amount is empty"}
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	negative := false
	if len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		// Inside parens this does not cancel: the amount is negated once.
		negative = true
		s = s[1:]
	}

	intPart, fracPart, ok := splitDecimal(s)
	if !ok {
		return 0, &ParseError{Code: CodeInvalidFormat, Detail: fmt.Sprintf("unparseable amount %q", raw)}
	}

	dollars, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, &ParseError{Code: CodeInvalidFormat, Detail: fmt.Sprintf("unparseable amount %q", raw)}
	}

	cents := dollars * 100
	switch len(fracPart) {
	case 0:
	case 1:
		// Single fraction digit is tens of cents: ".5" reads as 50 cents.
		cents += int64(fracPart[0]-'0') * 10
	default:
		cents += int64(fracPart[0]-'0')*10 + int64(fracPart[1]-'0')
	}

	if negative {
		cents = -cents
	}
	return cents, nil
}

// splitDecimal validates the shape "digits" or "digits.digits" and returns
// the two parts. Anything else is rejected.
func splitDecimal(s string) (intPart, fracPart string, ok bool) {
	intPart, fracPart, dotted := strings.Cut(s, ".")
	if intPart == "" || !allDigits(intPart) {
		return "", "", false
	}
	if dotted && (fracPart == "" || !allDigits(fracPart)) {
		return "", "", false
	}
	return intPart, fracPart, true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
