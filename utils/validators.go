package utils

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 128
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func IsValidPassword(password string) bool {
	return len(password) >= MinPasswordLength && len(password) <= MaxPasswordLength
}

// ParseOptionalInt parses a form value, treating blank input as zero.
func ParseOptionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// ParseID parses a positive resource id, tolerating a trailing ".json".
func ParseID(raw string) (uint, bool) {
	raw = strings.TrimSuffix(raw, ".json")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
