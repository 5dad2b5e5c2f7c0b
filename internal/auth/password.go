package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

var errPasswordMismatch = errors.New("password mismatch")

const pbkdf2Prefix = "$pbkdf2-sha256$"

// HashPassword hashes a plaintext password using bcrypt with DefaultCost.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword compares a stored hash with a candidate plaintext password.
// bcrypt hashes and passlib pbkdf2-sha256 hashes are accepted; both
// comparisons run in constant time.
func CheckPassword(hash, pw string) error {
	if strings.HasPrefix(hash, pbkdf2Prefix) {
		return checkPBKDF2(hash, pw)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
}

// checkPBKDF2 verifies passlib's "$pbkdf2-sha256$<rounds>$<salt>$<checksum>"
// format, where salt and checksum use passlib's adapted base64 ("." for "+",
// no padding).
func checkPBKDF2(hash, pw string) error {
	parts := strings.Split(strings.TrimPrefix(hash, pbkdf2Prefix), "$")
	if len(parts) != 3 {
		return errors.New("malformed pbkdf2 hash")
	}
	rounds, err := strconv.Atoi(parts[0])
	if err != nil || rounds <= 0 {
		return errors.New("malformed pbkdf2 rounds")
	}
	salt, err := decodeAB64(parts[1])
	if err != nil {
		return errors.New("malformed pbkdf2 salt")
	}
	want, err := decodeAB64(parts[2])
	if err != nil || len(want) == 0 {
		return errors.New("malformed pbkdf2 checksum")
	}
	got := pbkdf2.Key([]byte(pw), salt, rounds, len(want), sha256.New)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return errPasswordMismatch
	}
	return nil
}

func decodeAB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.ReplaceAll(s, ".", "+"))
}

