package workspace

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/aretw0/livefield/pkg/core"
)

// ScriptExt is the extension of script files.
const ScriptExt = ".js"

// SanitizeName turns a field name into a portable file base name.
func SanitizeName(name string, id int) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, name)
	s = strings.Trim(s, " .")
	if s == "" {
		return fmt.Sprintf("field-%d", id)
	}
	return s
}

// scriptNames assigns a unique file base name to every field. Collisions,
// compared case-insensitively for the benefit of macOS and Windows, get the
// field ID appended.
func scriptNames(fields []core.Field) map[int]string {
	counts := make(map[string]int, len(fields))
	for _, f := range fields {
		counts[strings.ToLower(SanitizeName(f.Name, f.ID))]++
	}

	names := make(map[int]string, len(fields))
	for _, f := range fields {
		base := SanitizeName(f.Name, f.ID)
		if counts[strings.ToLower(base)] > 1 {
			base = fmt.Sprintf("%s-%d", base, f.ID)
		}
		names[f.ID] = base + ScriptExt
	}
	return names
}
