// Package redact removes sensitive material from strings before they are
// logged or returned in error responses. Push endpoints are capability
// URLs and are treated as secrets, as are VAPID keys, subscription key
// material and database credentials.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
)

// Redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedEndpointPlaceholder   = "[REDACTED_ENDPOINT]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
)

var (
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|db|database|file)://[^@\s]+@`)

	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)
	keyRegex      = regexp.MustCompile(
		`(?i)(p256dh|auth|vapid[_-]?(?:public|private)[_-]?key|private[_-]?key|secret|token)(['"\s:=]+)[A-Za-z0-9_\-.~+/=]{8,}`,
	)

	// Any absolute https URL with a path is assumed to be a push endpoint.
	endpointRegex = regexp.MustCompile(`https?://[^\s"'/]+/[^\s"']+`)

	unixPathRegex = regexp.MustCompile(`(?:^|\s)(/[\w.-]+){2,}`)

	sqlRegex = regexp.MustCompile(
		`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()?$=]+(?:FROM|INTO|SET|TABLE|INDEX)(?:[\s\w,*()='"?$]+)?`,
	)

	// Order matters: credentials inside URLs go before endpoints.
	rules = []struct {
		re          *regexp.Regexp
		placeholder string
	}{
		{dbConnRegex, RedactedCredentialPlaceholder},
		{passwordRegex, RedactedCredentialPlaceholder},
		{keyRegex, RedactedKeyPlaceholder},
		{endpointRegex, RedactedEndpointPlaceholder},
		{sqlRegex, RedactedSQLPlaceholder},
		{unixPathRegex, " " + RedactedPathPlaceholder},
	}
)

// String redacts sensitive information from input.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.re.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts sensitive information from err.Error().
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// Endpoint returns a loggable form of a push endpoint: scheme and host plus
// a short digest of the full URL, so two log lines can be correlated
// without revealing the capability path.
func Endpoint(endpoint string) string {
	if endpoint == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(endpoint))
	digest := hex.EncodeToString(sum[:4])

	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return RedactedEndpointPlaceholder + "#" + digest
	}
	return u.Scheme + "://" + u.Host + "/…#" + digest
}

// DatabaseURL masks the password in a database URL.
func DatabaseURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
		}
		return u.String()
	}
	return dbURL
}
