package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const maxRosterLog = 6

// RosterUI shows the live peer table for a joined channel.
type RosterUI struct {
	program *tea.Program
	model   *rosterModel
	updates chan rosterUpdate
	quit    chan struct{}
	wg      sync.WaitGroup
}

type rosterUpdate struct {
	peers []PeerRow
	line  string
}

type tickMsg time.Time

type rosterModel struct {
	info     ChannelInfo
	peers    []PeerRow
	log      []string
	spinner  spinner.Model
	updates  chan rosterUpdate
	quit     chan struct{}
	once     sync.Once
	quitting bool
	now      func() time.Time
}

// NewRosterUI creates the roster for info. Call Start to show it.
func NewRosterUI(info ChannelInfo) *RosterUI {
	updates := make(chan rosterUpdate, 64)
	quit := make(chan struct{})
	return &RosterUI{
		model:   newRosterModel(info, updates, quit),
		updates: updates,
		quit:    quit,
	}
}

func newRosterModel(info ChannelInfo, updates chan rosterUpdate, quit chan struct{}) *rosterModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return &rosterModel{
		info:    info,
		spinner: s,
		updates: updates,
		quit:    quit,
		now:     time.Now,
	}
}

func (ui *RosterUI) Start() {
	ui.program = tea.NewProgram(ui.model)
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		if _, err := ui.program.Run(); err != nil {
			PrintError(fmt.Sprintf("UI error: %v", err))
		}
		ui.model.requestQuit()
	}()
}

// Quit is closed when the user asks to leave.
func (ui *RosterUI) Quit() <-chan struct{} {
	return ui.quit
}

// SetPeers replaces the table contents.
func (ui *RosterUI) SetPeers(peers []PeerRow) {
	select {
	case ui.updates <- rosterUpdate{peers: peers}:
	default:
	}
}

// Logf appends a line to the event log under the table.
func (ui *RosterUI) Logf(format string, args ...any) {
	select {
	case ui.updates <- rosterUpdate{line: fmt.Sprintf(format, args...)}:
	default:
	}
}

func (ui *RosterUI) Stop() {
	if ui.program != nil {
		ui.program.Quit()
	}
	ui.wg.Wait()
}

func (m *rosterModel) requestQuit() {
	m.once.Do(func() { close(m.quit) })
}

func (m *rosterModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *rosterModel) listen() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m *rosterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.requestQuit()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		return m, tick()

	case rosterUpdate:
		if msg.peers != nil {
			m.peers = msg.peers
		}
		if msg.line != "" {
			m.log = append(m.log, msg.line)
			if len(m.log) > maxRosterLog {
				m.log = m.log[len(m.log)-maxRosterLog:]
			}
		}
		return m, m.listen()
	}
	return m, nil
}

func (m *rosterModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s %s as %s", IconChannel, m.info.ChannelID, m.info.UID)))
	b.WriteString("\n")

	connected := 0
	for _, p := range m.peers {
		if p.State == "connected" {
			connected++
		}
	}
	if len(m.peers) == 0 || connected < len(m.peers) {
		b.WriteString(fmt.Sprintf("%s Negotiating... %d/%d connected\n\n", m.spinner.View(), connected, len(m.peers)))
	} else {
		b.WriteString(fmt.Sprintf("%s All %d peers connected\n\n", IconConnected, connected))
	}

	b.WriteString(PeerTableView(m.peers, m.now()))
	b.WriteString("\n")

	for _, line := range m.log {
		b.WriteString(MutedStyle.Render(line) + "\n")
	}

	b.WriteString(FooterStyle.Render("Press q to leave"))
	return b.String()
}
