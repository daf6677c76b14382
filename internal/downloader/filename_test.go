package downloader

import (
	"testing"

	"github.com/italolelis/jellyfin_downloader/internal/media"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"drops separators and punctuation", "A/B: Test?", "AB Test"},
		{"keeps allowed symbols", "Heat (1995) - Director_s Cut.v2", "Heat (1995) - Director_s Cut.v2"},
		{"drops path traversal slashes", "../../etc/passwd", "....etcpasswd"},
		{"keeps unicode letters", "Amélie 千と千尋", "Amélie 千と千尋"},
		{"keeps unicode numbers", "Part ²", "Part ²"},
		{"drops quotes and brackets", `"Alien" [1979] {HD}`, "Alien 1979 HD"},
		{"drops control characters", "a\tb\nc", "abc"},
		{"empty", "", ""},
		{"only forbidden", "?*<>|", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeName(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, SanitizeName(got), "sanitizing must be idempotent")
		})
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/media/movies/Heat (1995)/Heat.mkv", ".mkv"},
		{`D:\Media\Movies\Heat.avi`, ".avi"},
		{"/media/movies.collection/Heat", ""},
		{"Heat.tar.gz", ".gz"},
		{"/media/.hidden", ""},
		{"/media/..hidden.mp4", ".mp4"},
		{"trailing.", "."},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Extension(tt.in))
		})
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name string
		item media.Item
		want string
	}{
		{"extension from path", media.Item{Name: "Heat: Extended", Path: "/media/heat.MKV"}, "Heat Extended.MKV"},
		{"falls back to mp4", media.Item{Name: "Heat"}, "Heat.mp4"},
		{"path without extension", media.Item{Name: "Heat", Path: "/media/heat"}, "Heat"},
		{"unknown name", media.Item{Path: "/media/x.avi"}, "Unknown.avi"},
		{"unknown name without path", media.Item{}, "Unknown.mp4"},
		{"name drives the extension fallback", media.Item{Name: "Ep. 1"}, "Ep. 1.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(&tt.item))
		})
	}
}
