package crypto

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor used for password hashing. 12 rounds is the
// minimum acceptable for credentials guarding PHI.
const BcryptCost = 12

// MinPasswordLength is the minimum password length for staff accounts.
const MinPasswordLength = 12

// HashPassword hashes a plaintext password with bcrypt. Each call generates a
// fresh salt, so hashing the same password twice yields different outputs.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
// It never returns an error: any failure (mismatch, malformed hash) is false.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CheckPasswordStrength validates a candidate password against the account
// policy: minimum length plus uppercase, lowercase, digit, and symbol classes.
// It returns every violated rule, not just the first.
func CheckPasswordStrength(password string) []string {
	var violations []string

	if len(password) < MinPasswordLength {
		violations = append(violations, "password must be at least 12 characters long")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		violations = append(violations, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "password must contain at least one number")
	}
	if !hasSymbol {
		violations = append(violations, "password must contain at least one special character")
	}

	return violations
}

// MaskSSN masks a 9-digit social security number for display: XXX-XX-1234.
// Inputs that are not 9 digits are returned unchanged.
func MaskSSN(ssn string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, ssn)
	if len(digits) != 9 {
		return ssn
	}
	return "XXX-XX-" + digits[5:]
}
