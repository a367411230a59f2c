// Package password generates one-time passwords that satisfy the default
// Active Directory complexity policy.
package password

import (
	"crypto/rand"
	"math/big"
)

const (
	lower   = "abcdefghijklmnopqrstuvwxyz"
	upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits  = "0123456789"
	special = "!@#$%^&*" // safe set for AD
)

const minLength = 12

// Generate returns a random password of the requested length containing at
// least one character from each category. Lengths below the minimum are
// raised to it.
func Generate(length int) string {
	if length < minLength {
		length = minLength
	}
	pool := lower + upper + digits + special

	out := make([]byte, 0, length)
	out = append(out,
		pick(upper),
		pick(lower),
		pick(digits),
		pick(special),
	)
	for len(out) < length {
		out = append(out, pick(pool))
	}
	shuffle(out)
	return string(out)
}

func pick(set string) byte {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		// crypto/rand on a healthy system does not fail; if it does the
		// service must not hand out predictable passwords.
		panic(err)
	}
	return set[n.Int64()]
}

func shuffle(b []byte) {
	for i := len(b) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			panic(err)
		}
		j := n.Int64()
		b[i], b[j] = b[j], b[i]
	}
}
