package crypto

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a salted bcrypt hash from a plaintext password.
// The hash is the only form a password is ever stored or logged in.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a stored hash.
// The comparison is constant-time inside bcrypt.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
