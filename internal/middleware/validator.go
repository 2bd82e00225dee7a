package middleware

import (
	"fmt"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var uuidPattern = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)

// allowedImageTypes are the upload types the vision model accepts.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidateEmail checks the address is a bare RFC 5322 address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePassword enforces a minimum length.
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	return nil
}

// ValidateImage checks an upload's declared size and sniffed content type.
// It returns the detected content type.
func ValidateImage(data []byte, maxBytes int64) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no image uploaded")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", fmt.Errorf("image too large (max %d bytes)", maxBytes)
	}
	ct := http.DetectContentType(data)
	if !allowedImageTypes[ct] {
		return "", fmt.Errorf("only image files are allowed (jpeg, png, gif, webp), got %s", ct)
	}
	return ct, nil
}

// ValidatePrescriptionID validates prescription id format
func ValidatePrescriptionID(id string) error {
	if id == "" {
		return fmt.Errorf("prescription ID cannot be empty")
	}
	if !uuidPattern.MatchString(id) {
		return fmt.Errorf("invalid prescription ID format")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidateDays validates days parameter
func ValidateDays(days int) int {
	if days <= 0 {
		return 7 // default
	}
	if days > 365 {
		return 365 // max 1 year
	}
	return days
}
