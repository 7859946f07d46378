package services

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// PasswordSpecials lists the characters that satisfy the symbol rule.
const PasswordSpecials = "@$!%*?&"

// PasswordPolicy describes StrongPassword to users.
const PasswordPolicy = "must be at least 8 characters with upper and lower case letters, a digit and one of " + PasswordSpecials

// StrongPassword requires at least 8 characters with a lowercase letter, an
// uppercase letter, a digit and one of PasswordSpecials.
func StrongPassword(s string) bool {
	if utf8.RuneCountInString(s) < 8 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSpecials, r):
			special = true
		}
	}
	return lower && upper && digit && special
}
