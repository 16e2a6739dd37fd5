package logger

import (
	"net/url"
	"regexp"
)

var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((token|secret|passw(or)?d|api[_-]?key)[\s:=]+)([^;,\s]{3,})`),
}

// RedactSensitiveData replaces tokens and passwords in free text with "[REDACTED]".
func RedactSensitiveData(input string) string {
	for _, pattern := range sensitiveDataPatterns {
		input = pattern.ReplaceAllString(input, "$1[REDACTED]")
	}
	return input
}

// RedactURL hides the userinfo of a URL such as a broker address or a
// notification service URL. Unparseable input is redacted as free text.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return RedactSensitiveData(raw)
	}
	if u.User != nil {
		u.User = url.User("[REDACTED]")
	}
	if u.RawQuery != "" {
		u.RawQuery = "[REDACTED]"
	}
	return u.String()
}
