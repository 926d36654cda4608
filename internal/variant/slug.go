package variant

import (
	"strings"
	"unicode"
)

// Slug returns the kebab-case form of a project name: MyApp becomes my-app,
// "my_app 2" becomes my-app-2 and HTTPServer becomes http-server.
func Slug(name string) string {
	var b strings.Builder
	runes := []rune(name)
	dash := false
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			dash = b.Len() > 0
			continue
		}
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				dash = b.Len() > 0
			}
		}
		if dash {
			b.WriteByte('-')
			dash = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
