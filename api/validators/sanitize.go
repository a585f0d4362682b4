package validators

import "strings"

const (
	// MaxIdentifierLen bounds client ids and session ids echoed back to callers.
	MaxIdentifierLen = 128
	// MaxNotesLen bounds free-form document notes.
	MaxNotesLen = 2000
)

func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}

// SanitizeOptional trims value and collapses blanks to nil.
func SanitizeOptional(value *string, maxLen int) *string {
	if value == nil {
		return nil
	}
	trimmed := SanitizeString(*value, maxLen)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
