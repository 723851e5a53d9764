// Package testutil holds small helpers shared by package tests.
package testutil

import (
	"math/big"

	"github.com/tixly/tixly/internal/units"
)

// Ether parses a decimal ether amount into wei and panics on malformed input
func Ether(s string) *big.Int {
	wei, err := units.ParseEther(s)
	if err != nil {
		panic(err)
	}
	return wei
}
