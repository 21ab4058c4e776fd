// Package playlist validates catalog records and renders them into an M3U document.
package playlist

import (
	"fmt"
	"strings"

	"github.com/rizkirmdhn/catcast/pkg/models"
)

// Header opens every document
const Header = "#EXTM3U\n"

// DefaultGroupFormat labels each entry with its catalog page
const DefaultGroupFormat = "Sayfa %d"

// Assembler renders playlist entries. It holds no state between calls.
type Assembler struct {
	playerUserAgent string
	referer         string
	groupFormat     string
}

// NewAssembler returns an Assembler writing the given client hints.
// groupFormat must contain one %d verb for the page number.
func NewAssembler(playerUserAgent, referer, groupFormat string) *Assembler {
	if groupFormat == "" {
		groupFormat = DefaultGroupFormat
	}
	return &Assembler{
		playerUserAgent: playerUserAgent,
		referer:         referer,
		groupFormat:     groupFormat,
	}
}

// Group returns the group label for page
func (a *Assembler) Group(page int) string {
	return fmt.Sprintf(a.groupFormat, page)
}

// Entry pairs a record with its stream
func Entry(r models.ChannelRecord, s models.ResolvedStream, page int) models.PlaylistEntry {
	return models.PlaylistEntry{Channel: r, Stream: s, Page: page}
}

// Emit renders one four-line block: EXTINF metadata, user agent hint,
// referer hint, stream URL.
func (a *Assembler) Emit(r models.ChannelRecord, s models.ResolvedStream, page int) string {
	return a.Format(Entry(r, s, page))
}

// Format renders e as a playlist block
func (a *Assembler) Format(e models.PlaylistEntry) string {
	name := singleLine(e.Channel.Name)

	var b strings.Builder
	fmt.Fprintf(&b, `#EXTINF:-1 tvg-id="%s" tvg-name="%s" tvg-logo="%s" group-title="%s",%s`+"\n",
		attr(e.Channel.ID.String()),
		attr(name),
		attr(e.Channel.Logo),
		attr(a.Group(e.Page)),
		name,
	)
	b.WriteString("#EXTVLCOPT:http-user-agent=" + singleLine(a.playerUserAgent) + "\n")
	b.WriteString("#EXTVLCOPT:http-referer=" + singleLine(a.referer) + "\n")
	b.WriteString(singleLine(e.Stream.URL) + "\n")
	return b.String()
}

// singleLine trims s and folds line breaks so a value cannot split a block
func singleLine(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

// attr makes s safe inside a double-quoted EXTINF attribute
func attr(s string) string {
	return strings.ReplaceAll(singleLine(s), `"`, `'`)
}
