package model

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidUsername is returned for names that cannot be a LeetCode handle.
var ErrInvalidUsername = errors.New("invalid username")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// NormalizeUsername trims surrounding space and validates the handle.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !usernamePattern.MatchString(name) {
		return "", ErrInvalidUsername
	}
	return name, nil
}
