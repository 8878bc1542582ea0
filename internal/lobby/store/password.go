package store

import "golang.org/x/crypto/bcrypt"

// HashPassword creates a bcrypt hash of the given password.
//
// Precondition: password must be non-empty and at most 72 bytes.
// Postcondition: Returns a bcrypt hash string.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
//
// Postcondition: Returns true if password matches the hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
