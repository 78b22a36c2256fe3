package errors

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Name limits enforced by the schema editor.
const (
	MaxTableNameLen  = 30
	MaxColumnNameLen = 20
)

// ValidateTableName validates a table name as typed by the user.
//
// Rules:
//   - Not empty after trimming whitespace
//   - At most MaxTableNameLen characters
//   - No control characters
func ValidateTableName(name string) error {
	return validateName("table", name, MaxTableNameLen)
}

// ValidateColumnName validates a column name. Same rules as
// [ValidateTableName] with a limit of MaxColumnNameLen characters.
func ValidateColumnName(name string) error {
	return validateName("column", name, MaxColumnNameLen)
}

// ValidateNameLength only checks the length limit. Editors accept empty names
// while the user is typing; emptiness is caught later by a full validation.
func ValidateNameLength(kind, name string, max int) error {
	if n := utf8.RuneCountInString(name); n > max {
		return New(ErrCodeInvalidName, "%s name %q too long (%d characters, max %d)", kind, name, n, max)
	}
	return nil
}

func validateName(kind, name string, max int) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidName, "%s name cannot be empty", kind)
	}
	if err := ValidateNameLength(kind, name, max); err != nil {
		return err
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "%s name %q contains control characters", kind, name)
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
