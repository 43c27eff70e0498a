// Package security provides validation, sanitization, and limits for the mapper package.
package security

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jdziat/bulk-mapper/pkg/core"
)

// Limits that protect the remote service and local resources
const (
	// MaxInputLength is the maximum number of characters sent per input
	MaxInputLength = 127

	// DefaultNumThreads is the worker count used when none is configured
	DefaultNumThreads = 4

	// MaxNumThreads is the hard limit for concurrent requests
	MaxNumThreads = 8

	// DefaultNumRetries is the number of additional attempts per item
	DefaultNumRetries = 7

	// MaxRetries is the hard limit for additional attempts per item
	MaxRetries = 10

	// DefaultTimeout is the per-attempt request timeout
	DefaultTimeout = 30 * time.Second

	// MaxTimeout is the hard limit for a single request
	MaxTimeout = 35 * time.Second

	// MaxErrorMessageLength is the maximum length for persisted error messages
	MaxErrorMessageLength = 1024
)

// PrepareInput trims the input, folds line breaks into spaces and truncates it
// to MaxInputLength runes. The second result reports whether truncation happened.
func PrepareInput(input string) (string, bool, error) {
	input = strings.TrimSpace(foldLines(input))
	if input == "" {
		return "", false, core.ErrEmptyInput
	}
	if utf8.RuneCountInString(input) <= MaxInputLength {
		return input, false, nil
	}
	runes := []rune(input)
	return strings.TrimSpace(string(runes[:MaxInputLength])), true, nil
}

// PrepareHint normalizes a hint the same way inputs are normalized, without truncation.
func PrepareHint(hint string) string {
	return strings.TrimSpace(foldLines(hint))
}

func foldLines(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(s)), " ")
}

// SanitizeErrorMessage strips control characters, folds newlines and truncates
// error messages so each one fits a single sink row
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			sanitized.WriteRune(' ')
		case r >= 32 && r != 127:
			sanitized.WriteRune(r)
		}
	}

	result := strings.TrimSpace(sanitized.String())

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampRetries ensures retry count is within limits
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetries {
		return MaxRetries
	}
	return n
}

// ClampThreads ensures the worker count is within [1, MaxNumThreads]
func ClampThreads(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxNumThreads {
		return MaxNumThreads
	}
	return n
}

// ClampTimeout ensures a request timeout is positive and at most MaxTimeout.
// Non-positive values fall back to DefaultTimeout.
func ClampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}
