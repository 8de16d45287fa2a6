package ui

import (
	"fmt"
	"time"

	"github.com/BioHazard786/meshcall/internal/utils"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SessionSummary is printed after leaving a channel.
type SessionSummary struct {
	ChannelID string
	UID       string
	Duration  time.Duration
	Peers     []PeerRow
	Joined    int
	Left      int
	Errors    int
}

// SessionSummaryView renders the summary with go-pretty.
func SessionSummaryView(title string, s SessionSummary) string {
	tw := table.NewWriter()
	tw.SetTitle(title)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Title.Align = text.AlignCenter
	tw.Style().Options.SeparateRows = false

	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Channel", s.ChannelID},
		{"You", s.UID},
		{"Duration", utils.FormatTimeDuration(s.Duration)},
		{"Peers joined", s.Joined},
		{"Peers left", s.Left},
		{"Errors", s.Errors},
	})

	connected := 0
	for _, p := range s.Peers {
		if !p.ConnectedAt.IsZero() {
			connected++
		}
	}
	tw.AppendFooter(table.Row{"Connected at leave", fmt.Sprintf("%d/%d", connected, len(s.Peers))})

	return tw.Render()
}

// RenderSessionSummary prints the summary to stdout.
func RenderSessionSummary(title string, s SessionSummary) {
	fmt.Println(SessionSummaryView(title, s))
}
