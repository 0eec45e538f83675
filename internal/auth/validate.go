// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package auth

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// Length bounds, inclusive, counted in characters.
const (
	DisplayNameMinLength   = 3
	DisplayNameMaxLength   = 128
	UsernameMinLength      = 3
	UsernameMaxLength      = 128
	EmailMinLength         = 6
	EmailMaxLength         = 256
	PasswordMinLength      = 8
	PasswordMaxLength      = 128
	LoginPasswordMaxLength = 256
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@.\s]+$`)

// Validation failures, one per rule.
var (
	ErrDisplayNameLength = &ValidationError{
		Field:   "displayname",
		Message: "displayname must be 3 to 128 characters in length",
	}
	ErrUsernameLength = &ValidationError{
		Field:   "username",
		Message: "username must be 3 to 128 characters in length",
	}
	ErrEmailLength = &ValidationError{
		Field:   "email",
		Message: "email must be 6 to 256 characters in length",
	}
	ErrEmailInvalid = &ValidationError{
		Field:   "email",
		Message: "email is invalid",
	}
	ErrPasswordWeak = &ValidationError{
		Field: "password",
		Message: "password must contain at least: 1 upper case letter, 1 lower case letter, " +
			"1 number or special character and must be between 8 and 128 characters in length",
	}
	ErrPasswordLength = &ValidationError{
		Field:   "password",
		Message: "password must be 8 to 256 characters in length",
	}
)

// ValidateRegistration checks a registration payload and returns the first
// rule it violates, or nil.
func ValidateRegistration(c UserCredentials) *ValidationError {
	if !lengthWithin(c.DisplayName, DisplayNameMinLength, DisplayNameMaxLength) {
		return ErrDisplayNameLength
	}
	if err := validateIdentity(c.Username, c.Email); err != nil {
		return err
	}
	if !strongPassword(c.Password) {
		return ErrPasswordWeak
	}
	return nil
}

// ValidateLogin checks a login payload and returns the first rule it
// violates, or nil. Password strength is not re-checked so that passwords
// accepted under older rules still log in.
func ValidateLogin(c LoginCredentials) *ValidationError {
	if err := validateIdentity(c.Username, c.Email); err != nil {
		return err
	}
	if !lengthWithin(c.Password, PasswordMinLength, LoginPasswordMaxLength) {
		return ErrPasswordLength
	}
	return nil
}

func validateIdentity(username, email string) *ValidationError {
	if !lengthWithin(username, UsernameMinLength, UsernameMaxLength) {
		return ErrUsernameLength
	}
	if !lengthWithin(email, EmailMinLength, EmailMaxLength) {
		return ErrEmailLength
	}
	if !emailPattern.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}

func lengthWithin(s string, lo, hi int) bool {
	n := utf8.RuneCountInString(s)
	return n >= lo && n <= hi
}

// strongPassword requires an upper case letter, a lower case letter and a
// digit or special character, within the registration length bounds. Any rune
// that is not a letter counts as special, whitespace included.
func strongPassword(p string) bool {
	if !lengthWithin(p, PasswordMinLength, PasswordMaxLength) {
		return false
	}
	var upper, lower, other bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case !unicode.IsLetter(r):
			other = true
		}
	}
	return upper && lower && other
}
