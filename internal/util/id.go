package util

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const coupleCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CoupleCodeLength is the number of characters in a generated couple code.
const CoupleCodeLength = 6

func NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// NewCoupleCode returns a short uppercase code. Codes are not checked for
// collisions against existing couples.
func NewCoupleCode() string {
	code := make([]byte, CoupleCodeLength)
	max := big.NewInt(int64(len(coupleCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			code[i] = coupleCodeAlphabet[i%len(coupleCodeAlphabet)]
			continue
		}
		code[i] = coupleCodeAlphabet[n.Int64()]
	}
	return string(code)
}
