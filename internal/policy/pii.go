package policy

import (
	"regexp"
)

// piiPatterns copies the email, SSN and phone patterns from internal/obs's
// redaction set (not its card, IPv4, bearer or password patterns); the
// policy engine keeps its own copy so it can report *whether* a match
// occurred (feeding the Decision) independent of how logging redaction is
// wired.
var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
}

// RedactPII replaces every PII match in prompt with a [REDACTED-PII] marker,
// returning the modified prompt and whether any replacement occurred.
func RedactPII(prompt string) (string, bool) {
	modified := false
	out := prompt
	for _, p := range piiPatterns {
		out = p.ReplaceAllStringFunc(out, func(string) string {
			modified = true
			return "[REDACTED-PII]"
		})
	}
	return out, modified
}
