// Package logging scrubs secrets out of values before they reach a log
// line. Internal errors are logged with full context server-side but
// must never echo credentials, tokens, or connection details.
package logging

import "regexp"

// RedactedText replaces any matched secret.
const RedactedText = "[REDACTED]"

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// bearer JWTs, three base64url segments
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// api_key=... style parameters
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// user:pass@host inside a URL
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeConnectionString redacts credentials embedded in a DSN so it
// can be logged at startup.
func SanitizeConnectionString(dsn string) string {
	if dsn == "" {
		return ""
	}
	out := passwordPattern.ReplaceAllString(dsn, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(out, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError flattens an error into a loggable string with secrets
// redacted. Driver errors in particular tend to carry the full DSN.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	out := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	out = jwtPattern.ReplaceAllString(out, "Bearer "+RedactedText)
	out = apiKeyPattern.ReplaceAllString(out, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(out, "://"+RedactedText+"@"+RedactedText)
}
