package core

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const keyAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandomKey returns an n-character uppercase alphanumeric key.
func RandomKey(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("%w: key length %d", ErrMalformedInput, n)
	}

	max := big.NewInt(int64(len(keyAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate key: %w", err)
		}
		buf[i] = keyAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
