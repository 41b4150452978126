package blockchain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const etherDecimals = 18

var weiPerEther = decimal.New(1, etherDecimals)

// FormatEther renders a wei amount as an ether decimal string without
// trailing zeros ("1.05", "0", "12").
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}

// ParseEther converts a user-entered ether amount into wei. Amounts that are
// negative or carry more than 18 fractional digits are rejected.
func ParseEther(s string) (*big.Int, error) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return nil, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	wei := d.Mul(weiPerEther)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, etherDecimals)
	}
	return wei.BigInt(), nil
}

// ParseUint parses a base-10 non-negative integer form field.
func ParseUint(s string) (*big.Int, error) {
	clean := strings.TrimSpace(s)
	n, ok := new(big.Int).SetString(clean, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}
