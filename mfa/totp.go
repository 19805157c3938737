package mfa

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	codeDigits  = 6
	stepSeconds = 30

	// Accepted drift around the current time step: 10 steps back (5 minutes)
	// and 2 steps forward (1 minute). Fixed policy constants; widening the
	// window weakens replay and drift resistance, narrowing it increases
	// false rejections from clock skew.
	backSteps    = 10
	forwardSteps = 2
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimRight(strings.ReplaceAll(secret, " ", ""), "="))

	return secretEncoding.DecodeString(normalized)
}

// hotpCode derives the RFC 4226 truncated 6-digit code for a counter value.
func hotpCode(key []byte, counter uint64) string {
	var counterBytes [8]byte

	binary.BigEndian.PutUint64(counterBytes[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(counterBytes[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0xF
	truncated := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7FFFFFFF

	return fmt.Sprintf("%0*d", codeDigits, truncated%1_000_000)
}
