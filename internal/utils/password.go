package utils

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IsBcryptHash reports whether stored looks like a bcrypt hash.
func IsBcryptHash(stored string) bool {
	return len(stored) == 60 &&
		(strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$"))
}

// CheckPassword compares plain against a stored value that is either a
// bcrypt hash or a legacy plaintext password.  legacy is true when the
// match was against plaintext, signalling the caller to re-hash.
func CheckPassword(stored, plain string) (ok, legacy bool) {
	if IsBcryptHash(stored) {
		return VerifyPassword(stored, plain), false
	}
	ok = subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1
	return ok, ok
}
