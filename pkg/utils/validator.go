package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	sessionIDRegex   = regexp.MustCompile(`^AUD-[0-9A-F]{8}$`)
	controlCharRegex = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateSessionID checks the AUD-XXXXXXXX audit id format
func ValidateSessionID(id string) error {
	if !sessionIDRegex.MatchString(id) {
		return fmt.Errorf("invalid audit id: %q", id)
	}
	return nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlCharRegex.ReplaceAllString(s, "")
}

// SanitizeFilename keeps only the base name of an uploaded file, without
// control characters or directory parts
func SanitizeFilename(name string) string {
	name = SanitizeString(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return strings.TrimSpace(name)
}
