package core

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
)

const (
	DefaultCodeLength = 6
	DigitAlphabet     = "0123456789"
)

// GenerateCode draws length symbols uniformly from alphabet using crypto/rand.
func GenerateCode(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive")
	}
	if alphabet == "" {
		alphabet = DigitAlphabet
	}
	max := big.NewInt(int64(len(alphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}

// SanitizeCode keeps only digits, mirroring how the entry field strips input.
func SanitizeCode(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeRecipient trims the address and lower-cases email addresses.
// Anything that is not an email address (a phone number, say) is only trimmed.
func NormalizeRecipient(raw string) (string, error) {
	r := strings.TrimSpace(raw)
	if r == "" {
		return "", ErrInvalidRecipient
	}
	if strings.Contains(r, "@") {
		addr, err := mail.ParseAddress(r)
		if err != nil || addr.Address != r {
			return "", fmt.Errorf("%w: %q", ErrInvalidRecipient, raw)
		}
		return strings.ToLower(r), nil
	}
	return r, nil
}
