package cli

import (
	"regexp"
	"strings"
)

// jsonToken matches, in order: object keys with their colon, string values,
// literals, and numbers.
var jsonToken = regexp.MustCompile(`("(\\u[a-zA-Z0-9]{4}|\\[^u]|[^\\"])*"(\s*:)?|\b(true|false|null)\b|-?\d+(?:\.\d*)?(?:[eE][+\-]?\d+)?)`)

// HighlightJSON colors the structured fields the pretty log encoder appends
// to each line. It returns the input untouched when color is disabled.
func HighlightJSON(s string) string {
	if !Enabled() {
		return s
	}
	return jsonToken.ReplaceAllStringFunc(s, colorToken)
}

func colorToken(token string) string {
	var color string
	switch {
	case strings.HasSuffix(token, ":"):
		return Blue + strings.TrimRight(token[:len(token)-1], " \t") + ResetCode + ":"
	case strings.HasPrefix(token, `"`):
		color = Green
	case token == "true", token == "false":
		color = Yellow
	case token == "null":
		color = DimCode
	default:
		color = Purple
	}
	return color + token + ResetCode
}
