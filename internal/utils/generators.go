package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// GenerateSimulatedCertID returns a certificate id that is visibly not chain-assigned.
func GenerateSimulatedCertID() string {
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("SIM-%d-%06d", time.Now().UnixMilli(), randomNum.Int64())
}

// GenerateTxHash returns a random 0x-prefixed 32 byte hex string.
func GenerateTxHash() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("0x%064x", time.Now().UnixNano())
	}
	return "0x" + hex.EncodeToString(buf)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SafeFileName replaces every non-alphanumeric character with an underscore.
func SafeFileName(s string) string {
	return unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
}
