package playlist

import (
	"bytes"
	"io"

	orderedmap "github.com/wk8/go-ordered-map"
)

// Document accumulates entry blocks grouped by page. Pages keep the order in
// which they were first appended, blocks keep their order within a page.
// A Document is owned by a single run and is not safe for concurrent use.
type Document struct {
	pages *orderedmap.OrderedMap
	count int
}

// NewDocument returns an empty document
func NewDocument() *Document {
	return &Document{pages: orderedmap.New()}
}

// Append adds a rendered block under page
func (d *Document) Append(page int, block string) {
	blocks, _ := d.pages.Get(page)
	list, _ := blocks.([]string)
	d.pages.Set(page, append(list, block))
	d.count++
}

// Count is the number of blocks appended so far
func (d *Document) Count() int {
	return d.count
}

// Pages returns the pages that received at least one block, in order
func (d *Document) Pages() []int {
	pages := make([]int, 0, d.pages.Len())
	for pair := d.pages.Oldest(); pair != nil; pair = pair.Next() {
		pages = append(pages, pair.Key.(int))
	}
	return pages
}

// PageCount returns how many blocks page holds
func (d *Document) PageCount(page int) int {
	blocks, ok := d.pages.Get(page)
	if !ok {
		return 0
	}
	return len(blocks.([]string))
}

// WriteTo writes the header followed by every block
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var total int64
	n, err := io.WriteString(w, Header)
	total += int64(n)
	if err != nil {
		return total, err
	}

	for pair := d.pages.Oldest(); pair != nil; pair = pair.Next() {
		for _, block := range pair.Value.([]string) {
			n, err := io.WriteString(w, block)
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// Bytes renders the whole document
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	d.WriteTo(&buf)
	return buf.Bytes()
}
