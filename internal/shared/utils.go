// Package shared provides helpers for generating random public identifiers.
package shared

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// CodeAlphabet is the character set used for generated share codes. It skips
// characters that are easily confused when a code is read aloud or retyped
// (0/O, 1/I/L).
const CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// MakeRandCode returns a random string of the given length drawn uniformly
// from CodeAlphabet using crypto/rand.
//
// Example:
//
//	code, err := MakeRandCode(8)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(code) // e.g., "K7MZQ2PA"
func MakeRandCode(length int) (string, error) {
	if length < 0 {
		return "", errors.New("negative code length")
	}

	max := big.NewInt(int64(len(CodeAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = CodeAlphabet[n.Int64()]
	}

	return string(b), nil
}
