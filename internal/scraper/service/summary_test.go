package service

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rizkirmdhn/catcast/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestRenderSummary(t *testing.T) {
	s := &Summary{
		RunID: "abc",
		Pages: []PageSummary{
			{Page: 1, Outcome: "success", Records: 4, Valid: 3, Emitted: 2},
			{Page: 480, Outcome: "transient", Records: 0},
		},
		Stats:    models.Stats{PagesProcessed: 2, ChannelsSeen: 4, ChannelsEmitted: 2},
		Duration: 90 * time.Second,
	}

	var buf bytes.Buffer
	out := RenderSummary(&buf, s)

	assert.Equal(t, strings.TrimSpace(out), strings.TrimSpace(buf.String()))
	assert.Contains(t, out, "Run abc")
	assert.Contains(t, out, "480")
	assert.Contains(t, out, "transient")
	assert.Contains(t, out, "1m30s")
	assert.Equal(t, 2, s.Emitted())
}
