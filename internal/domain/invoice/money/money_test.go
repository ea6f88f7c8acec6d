package money

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"5", 500},
		{"5.1", 510},
		{"5.10", 510},
		{"0.99", 99},
		{"$1,234.56", 123456},
		{"1,000,000.00", 100000000},
		{"-12.34", -1234},
		{"(12.34)", -1234},
		{"($1,234.56)", -123456},
		{"(-12.34)", -1234}, // negation triggers do not cancel
		{"  10.00  ", 1000},
		{"$ 45.23", 4523},
		{"12.999", 1299}, // third fraction digit discarded, not rounded
		{"0", 0},
	}

	for _, tc := range tests {
		got, err := ParseAmount(tc.input)
		if err != nil {
			t.Errorf("ParseAmount(%q) error: %v", tc.input, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("ParseAmount(%q) = %d, want %d", tc.input, got, tc.expected)
		}
	}
}

func TestParseAmount_Empty(t *testing.T) {
	for _, input := range []string{"", "   ", "\t"} {
		_, err := ParseAmount(input)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("ParseAmount(%q): expected ParseError, got %v", input, err)
		}
		if parseErr.Code != CodeEmptyAmount {
			t.Errorf("ParseAmount(%q) code = %s, want %s", input, parseErr.Code, CodeEmptyAmount)
		}
	}
}

func TestParseAmount_InvalidFormat(t *testing.T) {
	inputs := []string{"abc", "12.34.56", ".5", "12.", "1 2", "--5", "()", "(abc)", "12a", "5,0,0.1a"}

	for _, input := range inputs {
		_, err := ParseAmount(input)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("ParseAmount(%q): expected ParseError, got %v", input, err)
		}
		if parseErr.Code != CodeInvalidFormat {
			t.Errorf("ParseAmount(%q) code = %s, want %s", input, parseErr.Code, CodeInvalidFormat)
		}
		if parseErr.Detail == "" {
			t.Errorf("ParseAmount(%q): detail should carry the original text", input)
		}
	}
}

func TestParseAmount_RoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 9, 10, 99, 100, 12345, 999999, -1, -99, -123456} {
		sign := ""
		abs := cents
		if abs < 0 {
			sign = "-"
			abs = -abs
		}
		formatted := fmt.Sprintf("%s%d.%02d", sign, abs/100, abs%100)
		got, err := ParseAmount(formatted)
		if err != nil {
			t.Fatalf("ParseAmount(%q) error: %v", formatted, err)
		}
		if got != cents {
			t.Errorf("round trip %d -> %q -> %d", cents, formatted, got)
		}
	}
}
