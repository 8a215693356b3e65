package core

import "strings"

// EscapeScript turns real newlines into the literal two-character sequence
// `\n`, the form older servers stored scripts in.
func EscapeScript(script string) string {
	return strings.ReplaceAll(script, "\n", `\n`)
}

// UnescapeScript is the inverse of EscapeScript.
func UnescapeScript(script string) string {
	return strings.ReplaceAll(script, `\n`, "\n")
}

// NormalizeScript unescapes scripts stored in the legacy escaped form: a
// single physical line holding literal `\n` sequences. Scripts that already
// contain real newlines are returned unchanged, so `\n` inside string literals
// survives a pull.
func NormalizeScript(script string) string {
	if strings.Contains(script, "\n") || !strings.Contains(script, `\n`) {
		return script
	}
	return UnescapeScript(script)
}
