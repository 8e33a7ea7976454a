package identity

import (
	"crypto/rand"
	"fmt"
	"strings"

	"recycletek/internal/domain"
)

// NewKioskID returns 8 uniformly random characters from A-Z0-9.
func NewKioskID() (string, error) {
	const n = len(domain.KioskIDAlphabet)
	// largest multiple of n below 256, so b%n is unbiased
	const limit = 256 - 256%n

	out := make([]byte, 0, domain.KioskIDLength)
	buf := make([]byte, domain.KioskIDLength*2)
	for len(out) < domain.KioskIDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, domain.KioskIDAlphabet[int(b)%n])
			if len(out) == domain.KioskIDLength {
				break
			}
		}
	}
	return string(out), nil
}

func NormalizeKioskID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidKioskID reports whether s (already normalised) has the kiosk id shape.
func ValidKioskID(s string) bool {
	if len(s) != domain.KioskIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(domain.KioskIDAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
