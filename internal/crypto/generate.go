package crypto

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

func RandomToken(n int) (string, error) {
	bytes, err := RandomBytes(n)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateKey returns a new hex encoded key accepted by ParseKey.
func GenerateKey() (string, error) {
	key, err := RandomToken(KeySize)
	if err != nil {
		return "", errors.Wrap(err, "could not generate key")
	}

	return key, nil
}
