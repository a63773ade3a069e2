package service

import (
	"context"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey is the strongly-typed context key for verbose logging flag
const VerboseContextKey ContextKey = "verbose"

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// SanitizeGUID shortens message guids in logs. Full guids are only logged in
// verbose mode.
func SanitizeGUID(guid string) string {
	if guid == "" {
		return ""
	}
	if len(guid) > 8 {
		return guid[:8] + "..."
	}
	return guid
}

// SanitizeText truncates message bodies for log output; content stays out of
// normal logs except for a short prefix.
func SanitizeText(text string) string {
	if len(text) > 32 {
		return text[:32] + "..."
	}
	return text
}
