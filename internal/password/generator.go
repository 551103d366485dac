// Package password generates credential passwords with a cryptographically
// secure random source.
package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits    = "0123456789"
	// Symbols are a deliberately small set that survives copy/paste into
	// license dialogs and shell commands.
	symbols = "!@#$%&*+-=?"

	alphabet = lowercase + uppercase + digits + symbols

	// MinLength is the floor silently applied to shorter requests.
	MinLength = 8

	// DefaultLength is used when no length is given on the command.
	DefaultLength = 16

	maxAttempts = 100
)

// Generate returns a random password of the requested length containing at
// least one lowercase letter, one uppercase letter, one digit and one
// symbol. Lengths below MinLength are raised to MinLength, never rejected.
//
// It draws up to maxAttempts candidates and keeps the first one covering all
// four classes. On exhaustion (vanishingly unlikely) it falls back to a
// construction that places one guaranteed character per class at the front
// and fills the rest randomly; the fallback's position distribution differs
// from the rejection-sampled path and that is accepted.
func Generate(length int) (string, error) {
	if length < MinLength {
		length = MinLength
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := randomString(alphabet, length)
		if err != nil {
			return "", err
		}
		if coversAllClasses(candidate) {
			return candidate, nil
		}
	}

	var b strings.Builder
	for _, class := range []string{lowercase, uppercase, digits, symbols} {
		ch, err := randomChar(class)
		if err != nil {
			return "", err
		}
		b.WriteByte(ch)
	}
	fill, err := randomString(alphabet, length-4)
	if err != nil {
		return "", err
	}
	b.WriteString(fill)
	return b.String(), nil
}

func coversAllClasses(s string) bool {
	return strings.ContainsAny(s, lowercase) &&
		strings.ContainsAny(s, uppercase) &&
		strings.ContainsAny(s, digits) &&
		strings.ContainsAny(s, symbols)
}

func randomString(charset string, length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		ch, err := randomChar(charset)
		if err != nil {
			return "", err
		}
		b.WriteByte(ch)
	}
	return b.String(), nil
}

func randomChar(charset string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
	if err != nil {
		return 0, fmt.Errorf("read random source: %w", err)
	}
	return charset[n.Int64()], nil
}
