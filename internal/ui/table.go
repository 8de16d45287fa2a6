package ui

import (
	"fmt"
	"time"

	"github.com/BioHazard786/meshcall/internal/utils"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// PeerRow is one remote participant as shown by the CLI.
type PeerRow struct {
	UID              string
	State            string
	Initiator        bool
	LocalCandidates  int
	RemoteCandidates int
	ConnectedAt      time.Time
}

// Role is "offerer" or "answerer".
func (r PeerRow) Role() string {
	if r.Initiator {
		return "offerer"
	}
	return "answerer"
}

// Uptime renders how long the peer has been connected.
func (r PeerRow) Uptime(now time.Time) string {
	if r.ConnectedAt.IsZero() {
		return "-"
	}
	return utils.FormatTimeDuration(now.Sub(r.ConnectedAt))
}

// PeerTableView renders rows with lipgloss/table.
func PeerTableView(rows []PeerRow, now time.Time) string {
	if len(rows) == 0 {
		return MutedStyle.Render("No peers yet")
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			utils.TruncateString(r.UID, 24),
			r.State,
			r.Role(),
			fmt.Sprintf("%d/%d", r.LocalCandidates, r.RemoteCandidates),
			r.Uptime(now),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Peer", "State", "Role", "ICE out/in", "Up").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case col == 1:
				return tableCellStyle.Inherit(StateStyle(rows[row].State))
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// ChannelInfo is the banner printed after joining.
type ChannelInfo struct {
	ChannelID string
	UID       string
	Server    string
}

func (c ChannelInfo) View() string {
	content := fmt.Sprintf("%s Joined channel\n\n%s Channel:  %s\n%s You:      %s\n%s Server:   %s",
		IconChannel,
		IconChannel, BoldStyle.Foreground(Primary).Render(c.ChannelID),
		IconPeer, BoldStyle.Render(c.UID),
		IconConnect, MutedStyle.Render(c.Server),
	)
	return SuccessBoxStyle.Render(content)
}
