package service

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	magicTokenLength   = 64
	magicTokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateMagicToken devuelve un token de 64 caracteres alfanumericos elegidos
// de manera uniforme con crypto/rand. La unicidad la garantiza el constraint
// de la tabla magic_links.
func GenerateMagicToken() (string, error) {
	alphabetLen := big.NewInt(int64(len(magicTokenAlphabet)))
	var b strings.Builder
	b.Grow(magicTokenLength)
	for i := 0; i < magicTokenLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b.WriteByte(magicTokenAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// newSessionKey genera la clave que identifica una sesion dentro del JWT (claim sid).
func newSessionKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
