package stream

import "regexp"

// manifestPattern matches an https-prefixed run that contains ".m3u8" and
// stops before the next double quote or line break. Detail pages embed the
// player source inside quoted HTML attributes and JS strings, so the quote is
// the natural end of the URL. The first match wins.
var manifestPattern = regexp.MustCompile(`https[^"\n]*?\.m3u8[^"\n]*`)

// Extract returns the first stream manifest URL found in body, verbatim
func Extract(body []byte) (string, bool) {
	match := manifestPattern.Find(body)
	if match == nil {
		return "", false
	}
	return string(match), true
}
