package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"github.com/labstack/gommon/random"
)

const alphaNumBytes = random.Alphanumeric

func randBytesFromStr(length int, from string) ([]byte, error) {
	b := make([]byte, length)
	fromLenBigInt := big.NewInt(int64(len(from)))
	for i := range b {
		r, err := rand.Int(rand.Reader, fromLenBigInt)
		if err != nil {
			return nil, err
		}
		b[i] = from[r.Int64()]
	}
	return b, nil
}

// makeReleaseCode returns a new one-time release code. Codes are bearer
// secrets, so they come from crypto/rand and only their hash is persisted.
func makeReleaseCode() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// makeInvoiceNumber returns a human-readable unique invoice number.
func makeInvoiceNumber() (string, error) {
	suffix, err := randBytesFromStr(10, alphaNumBytes)
	if err != nil {
		return "", err
	}
	return "ZP-" + string(suffix), nil
}
