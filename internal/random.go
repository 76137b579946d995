package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const resetTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewOTP returns a fixed-length numeric one-time code drawn from crypto/rand.
// Leading zeros are allowed; the result is always exactly digits long.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// NewResetToken returns a random alphanumeric token of the given length.
func NewResetToken(length int) (string, error) {
	if length < 16 || length > 128 {
		return "", errors.New("invalid reset token length")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(resetTokenAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(resetTokenAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// NewTokenSecret returns 32 random bytes for opaque bearer tokens.
func NewTokenSecret() ([32]byte, error) {
	var secret [32]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashSecret hashes a credential secret for storage. Plaintext secrets are
// never written to the cache store.
func HashSecret(secret []byte) [32]byte {
	return sha256.Sum256(secret)
}
