package security

import "regexp"

// Credential-shaped substrings that must never reach logs or client-visible
// error messages. The secret part is replaced, surrounding text stays.
var redactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(sk-)[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`(?i)(api[-_]?key["'\s:=]+)[a-zA-Z0-9\-_]{20,}`),
	regexp.MustCompile(`(?i)(bearer\s+)[a-zA-Z0-9\-_.]+`),
	regexp.MustCompile(`(?i)(authorization["'\s:=]+)[^\s"']+`),
	regexp.MustCompile(`(?i)(cookie["'\s:=]+)[^\s"']+`),
	regexp.MustCompile(`(?i)(x-api-key["'\s:=]+)[a-zA-Z0-9\-_.]+`),
}

// Redact scrubs credential-shaped substrings from text destined for logs
// and error messages. Never affects control flow.
func Redact(text string) string {
	for _, pattern := range redactPatterns {
		text = pattern.ReplaceAllString(text, "${1}[REDACTED]")
	}

	return text
}
