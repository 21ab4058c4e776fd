package stream

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestExtractFixtures(t *testing.T) {
	tests := []struct {
		fixture string
		want    string
		found   bool
	}{
		{"channel_player.html", "https://cdn.example/live/ch1.m3u8?token=abc", true},
		{"channel_script.html", "https://edge.example/hls/gamma/index.m3u8", true},
		{"channel_offline.html", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.fixture, func(t *testing.T) {
			got, ok := Extract(fixture(t, tt.fixture))
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		want  string
		found bool
	}{
		{"attribute", `<source src="https://cdn.example/live/ch1.m3u8?token=abc">`, "https://cdn.example/live/ch1.m3u8?token=abc", true},
		{"first match wins", `"https://a.example/1.m3u8" "https://b.example/2.m3u8"`, "https://a.example/1.m3u8", true},
		{"does not cross quotes", `"https://a.example/page" "https://b.example/x.m3u8"`, "https://b.example/x.m3u8", true},
		{"does not cross lines", "https://a.example/page\nx.m3u8", "", false},
		{"plain http ignored", `"http://a.example/x.m3u8"`, "", false},
		{"unquoted tail runs to end", `https://a.example/x.m3u8`, "https://a.example/x.m3u8", true},
		{"no manifest", `<a href="https://catcast.tv/">home</a>`, "", false},
		{"empty", ``, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract([]byte(tt.body))
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
