// Package validation holds field-level rules for account and post input.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"postbook/internal/models"
)

// Contact numbers are opaque: any run of non-space characters, compared byte for byte.
var contactNumberRegex = regexp.MustCompile(`^\S+$`)

// ValidateName checks an already trimmed account name.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > models.MaxNameLength {
		return fmt.Errorf("name must be at most %d characters", models.MaxNameLength)
	}
	return nil
}

// ValidateContactNumber checks an already trimmed contact number.
func ValidateContactNumber(contact string) error {
	if contact == "" {
		return errors.New("contact_number is required")
	}
	if utf8.RuneCountInString(contact) > models.MaxContactNumberLength {
		return fmt.Errorf("contact_number must be at most %d characters", models.MaxContactNumberLength)
	}
	if !contactNumberRegex.MatchString(contact) {
		return errors.New("contact_number must not contain whitespace")
	}
	return nil
}

// ValidateLocation checks an already trimmed location.
func ValidateLocation(location string) error {
	if location == "" {
		return errors.New("location is required")
	}
	return nil
}

// Trim normalizes free-text input before validation.
func Trim(s string) string {
	return strings.TrimSpace(s)
}
