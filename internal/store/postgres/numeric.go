package postgres

import (
	"fmt"
	"math/big"
)

// numericArg converts a big integer to the text form pgx sends for NUMERIC
// parameters. A nil value maps to SQL NULL.
func numericArg(n *big.Int) any {
	if n == nil {
		return nil
	}
	return n.String()
}

// parseNumeric parses the ::text projection of a NUMERIC(78,0) column.
func parseNumeric(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("postgres: malformed numeric %q", s)
	}
	return n, nil
}

// ratFromParts rebuilds an exact rational from its persisted numerator and
// denominator columns.
func ratFromParts(num, den string) (*big.Rat, error) {
	n, err := parseNumeric(num)
	if err != nil {
		return nil, err
	}
	d, err := parseNumeric(den)
	if err != nil {
		return nil, err
	}
	if d.Sign() == 0 {
		return nil, fmt.Errorf("postgres: zero denominator for rational %s/%s", num, den)
	}
	return new(big.Rat).SetFrac(n, d), nil
}
