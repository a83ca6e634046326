package util

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>". Tokens show up in error strings via
	// downstream HTTP libraries.
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Common key=value formats that sometimes leak in error strings. The
	// Gemini API key is the only secret this tool handles.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key|gemini[_-]?api[_-]?key)\b\s*[:=]\s*[^\s"']+`)

	// Gemini keys pasted verbatim into URLs or messages.
	geminiKeyRe = regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{20,}\b`)
)

// RedactSecrets removes obvious secret-bearing substrings from error/log
// strings. It is safe to call on any message, including upstream error
// strings and user-provided inputs.
func RedactSecrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = geminiKeyRe.ReplaceAllString(out, "<redacted_key>")
	return strings.TrimSpace(out)
}
