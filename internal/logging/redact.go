package logging

import "regexp"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`xox[abprs]-[A-Za-z0-9-]{10,}`), // Slack tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	regexp.MustCompile(`(AKIA|ASIA)[A-Z0-9]{16}`), // AWS access key ids
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces secrets embedded in s.
func Redact(s string) string {
	for _, pattern := range secretPatterns {
		s = pattern.ReplaceAllString(s, RedactedValue)
	}
	return s
}

// Mask hides all but the last four characters of a configured secret.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return RedactedValue
	}
	return RedactedValue + secret[len(secret)-4:]
}
