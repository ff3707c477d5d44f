package provision

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	passwordLower   = "abcdefghijklmnopqrstuvwxyz"
	passwordUpper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	passwordDigits  = "0123456789"
	passwordSymbols = "!@#$%^&*-_=+"
)

// GeneratePassword produces a random password of the given length containing
// at least one character from each class. Length values below 12 are raised
// to 12.
func GeneratePassword(length int) (string, error) {
	if length < 12 {
		length = 12
	}

	classes := []string{passwordLower, passwordUpper, passwordDigits, passwordSymbols}
	alphabet := passwordLower + passwordUpper + passwordDigits + passwordSymbols

	chars := make([]byte, 0, length)
	for _, class := range classes {
		ch, err := randomByte(class)
		if err != nil {
			return "", err
		}
		chars = append(chars, ch)
	}
	for len(chars) < length {
		ch, err := randomByte(alphabet)
		if err != nil {
			return "", err
		}
		chars = append(chars, ch)
	}

	// Shuffle so the class-guaranteed characters are not always first.
	for i := len(chars) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("password shuffle: %w", err)
		}
		j := n.Int64()
		chars[i], chars[j] = chars[j], chars[i]
	}
	return string(chars), nil
}

func randomByte(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("password generation: %w", err)
	}
	return alphabet[n.Int64()], nil
}
