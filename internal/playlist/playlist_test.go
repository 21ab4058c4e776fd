package playlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rizkirmdhn/catcast/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUA      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	testReferer = "https://catcast.tv/"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name   string
		record models.ChannelRecord
		want   bool
	}{
		{"complete", models.ChannelRecord{ID: "1", Name: "A", Shortname: "a"}, true},
		{"no logo", models.ChannelRecord{ID: "1", Name: "A", Shortname: "a", Logo: ""}, true},
		{"missing id", models.ChannelRecord{Name: "A", Shortname: "a"}, false},
		{"blank name", models.ChannelRecord{ID: "1", Name: "   ", Shortname: "a"}, false},
		{"missing shortname", models.ChannelRecord{ID: "1", Name: "A"}, false},
		{"blank id", models.ChannelRecord{ID: " \t", Name: "A", Shortname: "a"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.record))
		})
	}
}

func TestEmit(t *testing.T) {
	a := NewAssembler(testUA, testReferer, "")
	got := a.Emit(
		models.ChannelRecord{ID: "42", Name: "Kanal", Shortname: "kanal", Logo: "https://x/l.png"},
		models.ResolvedStream{Shortname: "kanal", URL: "https://cdn/k.m3u8"},
		7,
	)

	want := `#EXTINF:-1 tvg-id="42" tvg-name="Kanal" tvg-logo="https://x/l.png" group-title="Sayfa 7",Kanal` + "\n" +
		"#EXTVLCOPT:http-user-agent=" + testUA + "\n" +
		"#EXTVLCOPT:http-referer=" + testReferer + "\n" +
		"https://cdn/k.m3u8\n"
	assert.Equal(t, want, got)
}

func TestEmitDeterministic(t *testing.T) {
	a := NewAssembler(testUA, testReferer, DefaultGroupFormat)
	r := models.ChannelRecord{ID: "1", Name: "One", Shortname: "one"}
	s := models.ResolvedStream{Shortname: "one", URL: "https://cdn/1.m3u8"}

	first := a.Emit(r, s, 1)
	assert.Equal(t, first, a.Emit(r, s, 1))
	assert.Equal(t, first, NewAssembler(testUA, testReferer, DefaultGroupFormat).Emit(r, s, 1))
}

func TestEmitEmptyLogoAndUnsafeName(t *testing.T) {
	a := NewAssembler(testUA, testReferer, "Page %d")
	got := a.Emit(
		models.ChannelRecord{ID: "9", Name: "Say \"hi\"\nnow", Shortname: "hi"},
		models.ResolvedStream{URL: "https://cdn/hi.m3u8"},
		3,
	)

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, `#EXTINF:-1 tvg-id="9" tvg-name="Say 'hi' now" tvg-logo="" group-title="Page 3",Say "hi" now`, lines[0])
	assert.Equal(t, "https://cdn/hi.m3u8", lines[3])
}

func TestDocumentOrder(t *testing.T) {
	d := NewDocument()
	assert.Equal(t, Header, string(d.Bytes()))
	assert.Zero(t, d.Count())

	d.Append(2, "b1\n")
	d.Append(1, "a1\n")
	d.Append(2, "b2\n")

	assert.Equal(t, 3, d.Count())
	assert.Equal(t, []int{2, 1}, d.Pages())
	assert.Equal(t, 2, d.PageCount(2))
	assert.Equal(t, 0, d.PageCount(5))
	assert.Equal(t, Header+"b1\nb2\na1\n", string(d.Bytes()))
}

func TestFileSinkWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catcast_tv.m3u")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	a := NewAssembler(testUA, testReferer, "")
	d := NewDocument()
	d.Append(1, a.Emit(
		models.ChannelRecord{ID: "1", Name: "One", Shortname: "one"},
		models.ResolvedStream{Shortname: "one", URL: "https://cdn/1.m3u8"},
		1,
	))

	require.NoError(t, NewFileSink(path).Write(d))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, d.Bytes(), data)
	assert.True(t, strings.HasPrefix(string(data), "#EXTM3U\n#EXTINF:-1 "))
}

func TestFileSinkMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "out.m3u")
	assert.Error(t, NewFileSink(path).Write(NewDocument()))
}
