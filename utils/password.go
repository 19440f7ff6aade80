package utils

import "golang.org/x/crypto/bcrypt"

// MaxPasswordBytes is bcrypt's input limit.
const MaxPasswordBytes = 72

func HashPassword(raw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword compares in constant time; an empty hash never matches.
func CheckPassword(hash, raw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
