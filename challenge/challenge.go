// Package challenge derives the proofs a client sends to show it holds its
// private hash without ever transmitting it.
//
// The proof for a server issued challenge is
//
//	hex(SHA1(TOTP(challenge) || privateHash))
//
// where TOTP is the RFC 6238 time based variant of RFC 4226 HOTP with a 30
// second step, six digits and the base32 challenge used as the HMAC key.
package challenge

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// TimeStep is the TOTP time step.
	TimeStep = 30 * time.Second

	// Digits is the number of decimal digits of the TOTP code fed into the
	// challenge answer.
	Digits = 6

	maxDigits = 10
)

// ErrInvalidChallenge is returned when a challenge is not valid base32.
var ErrInvalidChallenge = errors.New("invalid challenge")

// PadBase32 upper-cases s and right pads it with '=' up to the next multiple
// of 8 characters. Strings whose length is already a multiple of 8 get no
// padding.
func PadBase32(s string) string {
	pad := (8 - len(s)%8) % 8
	return strings.ToUpper(s) + strings.Repeat("=", pad)
}

// DecodeKey decodes a base32 (RFC 4648) challenge into the raw HMAC key.
func DecodeKey(challenge string) ([]byte, error) {
	key, err := base32.StdEncoding.DecodeString(PadBase32(challenge))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChallenge, err)
	}
	return key, nil
}

// Counter returns the TOTP counter for the time t.
func Counter(t time.Time) uint64 {
	return uint64(t.Unix()) / uint64(TimeStep/time.Second)
}

// truncate applies the RFC 4226 dynamic truncation to an HMAC result.
func truncate(mac []byte) uint32 {
	offset := mac[len(mac)-1] & 0x0f
	return binary.BigEndian.Uint32(mac[offset:offset+4]) & 0x7fffffff
}

// HOTP computes the RFC 4226 one-time password for the base32 key and
// counter. The result is the rightmost digits decimal characters of the
// truncated HMAC-SHA1, left padded with zeros.
func HOTP(key string, counter uint64, digits int) (string, error) {
	if digits < 1 || digits > maxDigits {
		return "", fmt.Errorf("invalid number of digits %d", digits)
	}
	rawKey, err := DecodeKey(key)
	if err != nil {
		return "", err
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)
	mac := hmac.New(sha1.New, rawKey)
	mac.Write(msg[:])

	code := strconv.FormatUint(uint64(truncate(mac.Sum(nil))), 10)
	if len(code) > digits {
		code = code[len(code)-digits:]
	}
	if len(code) < digits {
		code = strings.Repeat("0", digits-len(code)) + code
	}
	return code, nil
}

// TOTP computes the six digit time based password for key at time t.
func TOTP(key string, t time.Time) (string, error) {
	return HOTP(key, Counter(t), Digits)
}

// Answer computes the challenge answer for the given private hash and
// challenge at time t. The answer is only valid during the TimeStep window
// that contains t, so it must be recomputed for every request.
func Answer(privateHash, challenge string, t time.Time) (string, error) {
	code, err := TOTP(challenge, t)
	if err != nil {
		return "", err
	}
	digest := sha1.Sum([]byte(code + privateHash))
	return hex.EncodeToString(digest[:]), nil
}

// AnswerNow is Answer at the current time.
func AnswerNow(privateHash, challenge string) (string, error) {
	return Answer(privateHash, challenge, time.Now())
}
