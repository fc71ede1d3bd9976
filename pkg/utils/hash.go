package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// EmailFingerprint identifies a buyer in logs without writing the address.
// Case and surrounding space do not change the result.
func EmailFingerprint(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:6])
}
