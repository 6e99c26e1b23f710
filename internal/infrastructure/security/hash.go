package security

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
)

// SHA-1 is kept for compatibility with session databases written by older
// deployments; the hash format on disk cannot change without a migration.

// HexHashLen is the length of every stored hash, salt, token and session id.
const HexHashLen = 40

var hexHashRe = regexp.MustCompile(`^[0-9a-f]{40}$`)

// ValidHexHash reports whether s is exactly 40 lowercase hex chars.
func ValidHexHash(s string) bool {
	return hexHashRe.MatchString(s)
}

// Rand20 returns 20 cryptographically random bytes. A short read from the
// entropy source is an error, never a truncated result.
func Rand20() ([]byte, error) {
	b := make([]byte, 20)
	n, err := rand.Read(b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, fmt.Errorf("entropy source underfilled: got %d of %d bytes", n, len(b))
	}
	return b, nil
}

// SHA1Hex returns the 40-char lowercase hex SHA-1 of b.
func SHA1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// NewSalt, NewToken and NewSessionID all have the same shape: the hex SHA-1
// of 20 random bytes.
func NewSalt() (string, error)      { return randomHash() }
func NewToken() (string, error)     { return randomHash() }
func NewSessionID() (string, error) { return randomHash() }

func randomHash() (string, error) {
	b, err := Rand20()
	if err != nil {
		return "", err
	}
	return SHA1Hex(b), nil
}

// PasswordHash computes the stored password hash:
// sha1_hex(password "-" confounder "-" salt). The confounder is the
// per-deployment pepper and is never stored alongside the user.
func PasswordHash(password, confounder, salt string) string {
	return SHA1Hex([]byte(password + "-" + confounder + "-" + salt))
}

// HashEqual compares two hex hashes in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
