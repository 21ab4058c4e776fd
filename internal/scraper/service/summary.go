package service

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderSummary writes a per-page table of a finished run to w
func RenderSummary(w io.Writer, s *Summary) string {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetTitle("Run " + s.RunID)
	tbl.AppendHeader(table.Row{"Page", "Catalog", "Records", "Valid", "Emitted"})

	valid := 0
	for _, p := range s.Pages {
		valid += p.Valid
		tbl.AppendRow(table.Row{p.Page, p.Outcome, p.Records, p.Valid, p.Emitted})
	}

	tbl.AppendFooter(table.Row{
		"Total",
		s.Duration.Round(time.Second).String(),
		s.Stats.ChannelsSeen,
		valid,
		s.Stats.ChannelsEmitted,
	})
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Footer = text.FormatDefault
	return tbl.Render()
}
