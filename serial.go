package estore

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const serialDigits = 16

var serialLow = new(big.Int).Exp(big.NewInt(10), big.NewInt(serialDigits-1), nil)

// newSerialNo 產生 16 位數字序號，首位不為零
func newSerialNo() (string, error) {
	// [10^15, 10^16)
	span := new(big.Int).Mul(serialLow, big.NewInt(9))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("failed to generate serial number: %w", err)
	}
	return n.Add(n, serialLow).String(), nil
}
