package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"

	"github.com/pkg/errors"
)

const (
	KeySize = 32
	IVSize  = 16
	TagSize = 16
)

var (
	ErrInvalidKey     = errors.New("invalid key")
	ErrMalformedBlob  = errors.New("malformed blob")
	ErrAuthentication = errors.New("message authentication failed")
)

// Sealer encrypts with AES-256-GCM. Sealed blobs are laid out as
// IV(16) || Tag(16) || Ciphertext.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, errors.Wrapf(ErrInvalidKey, "expected %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	iv, err := RandomBytes(IVSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not generate iv")
	}

	// GCM appends the tag to the ciphertext
	sealed := s.aead.Seal(nil, iv, plaintext, nil)
	ciphertext, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	blob := make([]byte, 0, IVSize+TagSize+len(ciphertext))
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return blob, nil
}

func (s *Sealer) Open(blob []byte) ([]byte, error) {
	if len(blob) < IVSize+TagSize {
		return nil, errors.Wrapf(ErrMalformedBlob, "blob is %d bytes long", len(blob))
	}

	iv := blob[:IVSize]
	tag := blob[IVSize : IVSize+TagSize]
	ciphertext := blob[IVSize+TagSize:]

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := s.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, errors.WithStack(ErrAuthentication)
	}

	return plaintext, nil
}

// ParseKey accepts a key given either as 32 raw bytes or as 64 hex characters.
func ParseKey(raw string) ([]byte, error) {
	switch len(raw) {
	case 0:
		return nil, errors.Wrap(ErrInvalidKey, "key is missing")
	case KeySize * 2:
		key, err := hex.DecodeString(raw)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKey, err.Error())
		}
		return key, nil
	case KeySize:
		return []byte(raw), nil
	default:
		return nil, errors.Wrapf(ErrInvalidKey, "expected %d raw bytes or %d hex characters, got %d characters", KeySize, KeySize*2, len(raw))
	}
}
