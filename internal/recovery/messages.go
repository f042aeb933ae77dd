package recovery

import "strings"

// Persona messages for hard failures. The response body is never empty:
// every failure mode resolves to an explanatory message naming a concrete
// next action. Internal diagnostics stay in the logs.
const (
	msgTimeout = "I'm taking longer than usual to think this through. Could you try again, or simplify the request a little?"
	msgRate    = "I'm getting a lot of requests right now. Give me a moment and try again."
	msgNetwork = "I'm having trouble reaching my tools at the moment. Please try again shortly."
	msgGeneric = "Something went wrong on my end while working on that. Try rephrasing, or switch to a simpler request and I'll take another pass."
)

// Explain maps an internal error to the user-facing persona message by
// matching fixed substrings in the underlying error text.
func Explain(err error) string {
	if err == nil {
		return msgGeneric
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return msgTimeout
	case strings.Contains(msg, "rate limit"):
		return msgRate
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection"):
		return msgNetwork
	default:
		return msgGeneric
	}
}
