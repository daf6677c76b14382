package downloader

import (
	"strings"
	"unicode"

	"github.com/italolelis/jellyfin_downloader/internal/media"
)

const (
	unknownName       = "Unknown"
	fallbackExtension = ".mp4"
	allowedSymbols    = " .-_()"
)

// SanitizeName keeps letters, numbers and the symbols in allowedSymbols. Every
// other character is dropped, not replaced, so "A/B: Test?" becomes "AB Test".
func SanitizeName(name string) string {
	var b strings.Builder

	b.Grow(len(name))

	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || strings.ContainsRune(allowedSymbols, r) {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Extension returns the extension of the last element of p, dot included.
// Leading dots of the element do not start an extension. Both / and \ separate
// elements since the server may run on either platform.
func Extension(p string) string {
	base := strings.TrimLeft(p[strings.LastIndexAny(p, `/\`)+1:], ".")

	i := strings.LastIndex(base, ".")
	if i < 0 {
		return ""
	}

	return base[i:]
}

// Filename derives the local file name of an item: the sanitized display name
// followed by the extension of the item's original path.
func Filename(item *media.Item) string {
	name := item.Name
	if name == "" {
		name = unknownName
	}

	source := item.Path
	if source == "" {
		source = name + fallbackExtension
	}

	return SanitizeName(name) + Extension(source)
}
