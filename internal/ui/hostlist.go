package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/mdnswatch/internal/discovery"
)

// Messages delivered from tracker subscriptions
type hostsMsg []discovery.MatchedHost
type conflictsMsg []discovery.ConflictingHost
type doneMsg struct{}

// hostListKeyMap defines key bindings for the host list
type hostListKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Filter key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k hostListKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Filter, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k hostListKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Filter, k.Quit},
	}
}

// hostItem wraps a MatchedHost for use with bubbles/list
type hostItem struct {
	host discovery.MatchedHost
}

func (i hostItem) FilterValue() string {
	return i.host.HostName + " " + joinAddrs(i.host.Addresses)
}

func (i hostItem) Title() string {
	return fmt.Sprintf("%s:%d", i.host.HostName, i.host.Port)
}

func (i hostItem) Description() string {
	return joinAddrs(i.host.Addresses)
}

// HostListConfig wires a HostList to a tracker.
type HostListConfig struct {
	// Service is the "_service._proto" key shown in the title
	Service string

	// Hosts delivers tracker snapshots, usually from Tracker.Subscribe
	Hosts <-chan []discovery.MatchedHost

	// Conflicts delivers conflict snapshots; nil when not advertising
	Conflicts <-chan []discovery.ConflictingHost

	// Done quits the program when closed
	Done <-chan struct{}

	// OnSelect is called when the user picks a host
	OnSelect func(discovery.MatchedHost)
}

// HostList is an interactive, live-updating list of matched hosts.
type HostList struct {
	config   HostListConfig
	list     list.Model
	spinner  spinner.Model
	help     help.Model
	keys     hostListKeyMap
	received bool
	ticking  bool
	conflict []discovery.ConflictingHost
	selected *discovery.MatchedHost
	width    int
	height   int
}

// NewHostList creates the host list model.
func NewHostList(cfg HostListConfig) HostList {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = cfg.Service
	l.Styles.Title = TitleStyle
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)

	width, height := GetTerminalSize()
	m := HostList{
		config:  cfg,
		list:    l,
		spinner: s,
		ticking: true,
		help:    help.New(),
		keys: hostListKeyMap{
			Up: key.NewBinding(
				key.WithKeys("up", "k"),
				key.WithHelp("↑/k", "move up"),
			),
			Down: key.NewBinding(
				key.WithKeys("down", "j"),
				key.WithHelp("↓/j", "move down"),
			),
			Select: key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "select"),
			),
			Filter: key.NewBinding(
				key.WithKeys("/"),
				key.WithHelp("/", "filter"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
	}
	m.resize(width, height)
	return m
}

func waitFor[T any](ch <-chan T, done <-chan struct{}, wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		select {
		case v := <-ch:
			return wrap(v)
		case <-done:
			return doneMsg{}
		}
	}
}

func (m HostList) waitForHosts() tea.Cmd {
	return waitFor(m.config.Hosts, m.config.Done, func(h []discovery.MatchedHost) tea.Msg { return hostsMsg(h) })
}

func (m HostList) waitForConflicts() tea.Cmd {
	if m.config.Conflicts == nil {
		return nil
	}
	return waitFor(m.config.Conflicts, m.config.Done, func(c []discovery.ConflictingHost) tea.Msg { return conflictsMsg(c) })
}

// Init implements tea.Model
func (m HostList) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForHosts(), m.waitForConflicts())
}

func (m *HostList) resize(width, height int) {
	m.width = clampWidth(width)
	m.height = height
	reserved := 4
	if len(m.conflict) > 0 {
		reserved += 4 + 2*len(m.conflict)
	}
	m.list.SetSize(m.width, max(height-reserved, 4))
}

// Update implements tea.Model
func (m HostList) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case hostsMsg:
		m.received = true
		items := make([]list.Item, len(msg))
		for i, h := range msg {
			items[i] = hostItem{host: h}
		}
		cmds := []tea.Cmd{m.list.SetItems(items), m.waitForHosts()}
		if len(items) == 0 && !m.ticking {
			m.ticking = true
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case conflictsMsg:
		m.conflict = msg
		m.resize(m.width, m.height)
		return m, m.waitForConflicts()

	case doneMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		if m.received && len(m.list.Items()) > 0 {
			m.ticking = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Select):
			if item, ok := m.list.SelectedItem().(hostItem); ok {
				host := item.host
				m.selected = &host
				if m.config.OnSelect != nil {
					m.config.OnSelect(host)
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m HostList) View() string {
	var b strings.Builder

	if box := RenderConflict(m.conflict, m.width); box != "" {
		b.WriteString(box)
		b.WriteString("\n")
	}

	if len(m.list.Items()) == 0 {
		b.WriteString(TitleStyle.Render(m.config.Service))
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf(" %s Searching for %s...\n\n", m.spinner.View(), m.config.Service))
	} else {
		b.WriteString(m.list.View())
		b.WriteString("\n")
	}

	if m.selected != nil {
		b.WriteString(SelectedHostStyle.Render(fmt.Sprintf(" %s %s", SelectedMarker, m.selected.Endpoint())))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// Selected returns the host the user last picked.
func (m HostList) Selected() (discovery.MatchedHost, bool) {
	if m.selected == nil {
		return discovery.MatchedHost{}, false
	}
	return *m.selected, true
}

// RunHostList runs the interactive list until the user quits or cfg.Done is
// closed. It returns the last selected host, if any.
func RunHostList(cfg HostListConfig) (discovery.MatchedHost, bool, error) {
	p := tea.NewProgram(NewHostList(cfg), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return discovery.MatchedHost{}, false, err
	}
	host, ok := final.(HostList).Selected()
	return host, ok, nil
}
