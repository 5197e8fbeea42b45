package handlers

import (
	"fmt"
	"hash/fnv"
	"html"
	"net/http"
	"strings"
	"unicode"
)

var avatarPalette = []string{"#FF9C01", "#FF8E01", "#1E1E2D", "#232533", "#7B7B8B", "#CDCDE0"}

// AvatarHandler renders generated avatar images.
type AvatarHandler struct{}

// Initials handles GET /v1/avatars/initials?name=. It renders up to two initials on a
// background colour derived from the name.
func (AvatarHandler) Initials(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	label := initials(name)

	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(name)))
	background := avatarPalette[h.Sum32()%uint32(len(avatarPalette))]

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100" viewBox="0 0 100 100">`+
		`<rect width="100" height="100" fill="%s"/>`+
		`<text x="50" y="50" dy=".35em" text-anchor="middle" font-family="sans-serif" font-size="40" fill="#FFFFFF">%s</text>`+
		`</svg>`, background, html.EscapeString(label))
}

func initials(name string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}
