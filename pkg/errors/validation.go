package errors

import (
	"strings"
	"unicode"
)

// ValidateTableName validates a table filename for safety.
// It ensures the filename is a simple basename without path components.
func ValidateTableName(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidTable, "table filename cannot be empty")
	}

	// Must be a simple filename, not a path
	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidTable, "table filename cannot contain path separators")
	}

	if strings.HasPrefix(filename, ".") {
		return New(ErrCodeInvalidTable, "table filename cannot be a hidden file")
	}

	for _, r := range filename {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidTable, "table filename contains invalid control characters")
		}
	}

	return nil
}

// ValidateImageName validates a logical image name used to build output
// filenames and to serve images over HTTP.
//
// Validation rules:
//   - Name cannot be empty
//   - Maximum length of 200 characters
//   - No control characters
//   - No path separators or traversal sequences (..)
func ValidateImageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "image name cannot be empty")
	}

	const maxNameLength = 200
	if len(name) > maxNameLength {
		return New(ErrCodeInvalidPath, "image name too long (max %d characters)", maxNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "image name contains invalid characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidPath, "image name cannot contain path separators")
	}

	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidPath, "image name cannot contain path traversal sequences (..)")
	}

	return nil
}
