package utils

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Message content bounds, enforced after sanitization.
const MaxMessageLength = 1000

var (
	ErrContentEmpty   = errors.New("message content cannot be empty")
	ErrContentTooLong = errors.New("message content must be at most 1000 characters")
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func strictPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// SanitizeContent strips all markup from user-supplied message content and
// validates the result. Content that is empty after sanitization is rejected,
// so a message consisting only of tags never reaches storage.
func SanitizeContent(content string) (string, error) {
	// The bound is in characters, not bytes, so multibyte text is not
	// penalized for its encoding.
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", ErrContentTooLong
	}

	sanitized := strings.TrimSpace(strictPolicy().Sanitize(content))
	if sanitized == "" {
		return "", ErrContentEmpty
	}
	if utf8.RuneCountInString(sanitized) > MaxMessageLength {
		return "", ErrContentTooLong
	}
	return sanitized, nil
}
