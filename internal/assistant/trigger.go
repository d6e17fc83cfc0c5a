package assistant

import (
	"regexp"
	"strings"
)

// A member message addressed to the assistant starts with "@ai" (any case),
// followed by the actual question.
var triggerPattern = regexp.MustCompile(`(?i)^\s*@ai\b`)

// IsTrigger reports whether a message body is addressed to the assistant.
func IsTrigger(body string) bool {
	return triggerPattern.MatchString(body)
}

// StripTrigger removes the leading "@ai" marker, leaving the question text.
func StripTrigger(body string) string {
	loc := triggerPattern.FindStringIndex(body)
	if loc == nil {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(body[loc[1]:])
}
