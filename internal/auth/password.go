package auth

import (
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/terraconstructs/gatehouse/internal/apperr"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordHashCost is the bcrypt cost for local credentials.
var PasswordHashCost = 12

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", apperr.Invalid("password", "Password must be at most "+strconv.Itoa(MaxPasswordBytes)+" bytes long")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordHashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks password against a bcrypt hash.
func VerifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// DummyPasswordHash is a hash no password matches. Login compares against it
// when there is no stored hash so that a miss costs the same as a wrong password.
func DummyPasswordHash() string {
	dummyHashOnce.Do(func() {
		secret, err := generateRandomBytes(MaxPasswordBytes)
		if err != nil {
			panic(fmt.Sprintf("auth: dummy password secret: %v", err))
		}
		hash, err := bcrypt.GenerateFromPassword(secret, PasswordHashCost)
		if err != nil {
			panic(fmt.Sprintf("auth: dummy password hash: %v", err))
		}
		dummyHash = string(hash)
	})
	return dummyHash
}
