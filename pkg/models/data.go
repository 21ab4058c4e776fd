package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ChannelRecord represents a channel as returned by the catalog API
type ChannelRecord struct {
	ID        FlexString `json:"id"`
	Name      string     `json:"name"`
	Shortname string     `json:"shortname"`
	Logo      string     `json:"logo"`
}

// ResolvedStream is the live manifest address found on a channel page
type ResolvedStream struct {
	Shortname string `json:"shortname"`
	URL       string `json:"url"`
}

// PlaylistEntry pairs a validated record with its resolved stream
type PlaylistEntry struct {
	Channel ChannelRecord  `json:"channel"`
	Stream  ResolvedStream `json:"stream"`
	Page    int            `json:"page"`
}

// FlexString accepts both JSON strings and numbers. The catalog API sends
// numeric ids, but nothing guarantees it keeps doing so.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the trimmed value
func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}
