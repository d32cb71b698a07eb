// Package tui renders a live spectator view of a hosted game: a
// scrolling feed of wire records on the left, the table scoreboard on
// the right. All state is reconstructed from the stream; the TUI
// never talks to the rules engine directly.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type recordMsg Record

type streamEndMsg struct{}

type playerRow struct {
	ID    string
	Name  string
	Cards int
}

// Model is the Bubble Tea model for watching one game
type Model struct {
	logger *log.Logger
	gameID string

	records <-chan Record
	feed    viewport.Model
	lines   []string

	players  []playerRow
	turn     int
	expected string
	pile     int
	current  string
	winner   string
	ended    bool

	width       int
	height      int
	initialized bool
	quitting    bool
}

// NewModel creates a watch model fed by a record stream
func NewModel(gameID string, records <-chan Record, logger *log.Logger) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	return &Model{
		logger:  logger.WithPrefix("watch"),
		gameID:  gameID,
		records: records,
		feed:    vp,
	}
}

// Init starts the record pump
func (m *Model) Init() tea.Cmd {
	return m.nextRecord()
}

// nextRecord waits for one record from the stream
func (m *Model) nextRecord() tea.Cmd {
	return func() tea.Msg {
		record, ok := <-m.records
		if !ok {
			return streamEndMsg{}
		}
		return recordMsg(record)
	}
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.quitting = true
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "up", "k":
			m.feed.ScrollUp(1)
		case "down", "j":
			m.feed.ScrollDown(1)
		case "pgup", "b":
			m.feed.HalfPageUp()
		case "pgdown", "f":
			m.feed.HalfPageDown()
		case "home", "g":
			m.feed.GotoTop()
		case "end", "G":
			m.feed.GotoBottom()
		}

	case recordMsg:
		m.apply(Record(msg))
		m.feed.SetContent(strings.Join(m.lines, "\n"))
		m.feed.GotoBottom()
		return m, m.nextRecord()

	case streamEndMsg:
		m.ended = true
		m.lines = append(m.lines, InfoStyle.Render("— stream closed —"))
		m.feed.SetContent(strings.Join(m.lines, "\n"))
		m.feed.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.feed, cmd = m.feed.Update(msg)
	return m, cmd
}

// apply folds one wire record into the scoreboard and the feed
func (m *Model) apply(record Record) {
	kind, data := record.Unwrap()
	switch kind {
	case "game_start":
		m.players = m.players[:0]
		names := make([]string, 0, 4)
		for _, p := range asSlice(data["players"]) {
			row := asMap(p)
			m.players = append(m.players, playerRow{
				ID:    asString(row["id"]),
				Name:  asString(row["name"]),
				Cards: asInt(row["hand_count"]),
			})
			names = append(names, asString(row["name"]))
		}
		m.turn = 1
		m.pile = 0
		m.expected = asString(data["expected_rank"])
		m.current = asString(data["starting_player"])
		m.winner = ""
		m.addLine("Game on: %s • %s leads on %s",
			strings.Join(names, ", "),
			m.nameFor(m.current),
			RankStyle.Render(m.expected))

	case "turn_start":
		id := asString(data["player_id"])
		m.current = id
		m.turn = asInt(data["turn_number"])
		m.expected = asString(data["expected_rank"])
		m.pile = asInt(data["pile_count"])
		m.rowFor(id, asString(data["player_name"])).Cards = asInt(data["hand_count"])
		m.addLine("%s", InfoStyle.Render(fmt.Sprintf("turn %d · %s to act on %s (%d in hand, pile %d)",
			m.turn, asString(data["player_name"]), m.expected, asInt(data["hand_count"]), m.pile)))

	case "card_play":
		id := asString(data["player_id"])
		name := asString(data["player_name"])
		m.rowFor(id, name).Cards = asInt(data["hand_remaining"])
		m.pile = asInt(data["pile_count"])
		m.expected = asString(data["next_expected_rank"])
		m.current = asString(data["next_player"])
		m.turn = asInt(data["turn_number"]) + 1

		verdict := TruthStyle.Render("honest")
		if truthful, _ := data["was_truthful"].(bool); !truthful {
			verdict = BluffStyle.Render("bluffing")
		}
		m.addLine("%s plays %d claiming %d × %s — %s (%d left)",
			name,
			len(asSlice(data["actual_cards"])),
			asInt(data["claimed_count"]),
			RankStyle.Render(asString(data["claimed_rank"])),
			verdict,
			asInt(data["hand_remaining"]))

	case "bs_call":
		caller := asString(data["caller_name"])
		target := asString(data["target_name"])
		receiver := asString(data["pile_receiver"])
		penalty := asInt(data["penalty_cards"])
		m.rowFor(receiver, "").Cards += penalty
		m.pile = 0
		m.current = asString(data["next_player"])
		m.turn = asInt(data["turn_number"]) + 1

		outcome := fmt.Sprintf("%s, %s takes the pile (%d)", TruthStyle.Render("honest claim"), caller, penalty)
		if bluff, _ := data["was_bluff"].(bool); bluff {
			outcome = fmt.Sprintf("%s, %s takes the pile (%d)", BluffStyle.Render("caught bluffing"), target, penalty)
		}
		m.addLine("%s %s calls out %s — %s", CallStyle.Render("BS!"), caller, target, outcome)

	case "player_reaction":
		m.addLine("%s", ReactionStyle.Render(fmt.Sprintf("  %s: %q",
			asString(data["player_name"]), asString(data["reaction"]))))

	case "game_over":
		m.winner = asString(data["winner_name"])
		m.current = ""
		m.addLine("%s", WinnerStyle.Render(fmt.Sprintf("%s wins after %d turns", m.winner, asInt(data["turn_number"]))))

	case "agent_timeout":
		m.addLine("%s", InfoStyle.Render(fmt.Sprintf("%s stalled: %s",
			asString(data["player_name"]), asString(data["reason"]))))

	case "snapshot":
		m.players = m.players[:0]
		for _, p := range asSlice(data["players"]) {
			row := asMap(p)
			m.players = append(m.players, playerRow{
				ID:    asString(row["id"]),
				Name:  asString(row["name"]),
				Cards: asInt(row["hand_count"]),
			})
		}
		m.turn = asInt(data["turn_number"])
		m.expected = asString(data["current_expected_rank"])
		m.pile = asInt(data["center_pile_count"])
		m.current = asString(data["current_player"])
		m.winner = m.nameFor(asString(data["winner"]))
		m.addLine("%s", InfoStyle.Render(fmt.Sprintf("— resumed from snapshot at turn %d —", m.turn)))

	default:
		m.logger.Debug("Unhandled record", "kind", kind)
	}
}

func (m *Model) addLine(format string, args ...any) {
	m.lines = append(m.lines, fmt.Sprintf(format, args...))
}

// rowFor finds a player row, adding one when the stream mentions a
// player the scoreboard has not seen (a resume without game_start).
func (m *Model) rowFor(id, name string) *playerRow {
	for i := range m.players {
		if m.players[i].ID == id {
			return &m.players[i]
		}
	}
	if name == "" {
		name = id
	}
	m.players = append(m.players, playerRow{ID: id, Name: name})
	return &m.players[len(m.players)-1]
}

func (m *Model) nameFor(id string) string {
	for _, row := range m.players {
		if row.ID == id {
			return row.Name
		}
	}
	return id
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Connecting..."
	}

	header := HeaderStyle.Render(fmt.Sprintf(" bluffbots · %s ", m.gameID))
	status := m.renderStatus()
	chromeHeight := lipgloss.Height(header) + lipgloss.Height(status)

	sidebar := m.renderSidebar()
	sidebarWidth := lipgloss.Width(sidebar)
	if sidebarWidth < 22 {
		sidebarWidth = 22
	}

	feedWidth := m.width - sidebarWidth - 4
	feedHeight := m.height - chromeHeight - 2
	if feedWidth < 1 {
		feedWidth = 1
	}
	if feedHeight < 1 {
		feedHeight = 1
	}
	m.feed.Width = feedWidth
	m.feed.Height = feedHeight
	if !m.initialized && feedWidth > 1 && feedHeight > 1 {
		m.feed.GotoBottom()
		m.initialized = true
	}

	feedPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(feedWidth).
		Height(feedHeight).
		Render(m.feed.View())

	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Height(feedHeight).
		Render(sidebar)

	body := lipgloss.JoinHorizontal(lipgloss.Top, feedPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

func (m *Model) renderStatus() string {
	switch {
	case m.winner != "":
		return WinnerStyle.Render(fmt.Sprintf(" %s wins! ", m.winner)) +
			InfoStyle.Render(" q to quit")
	case m.ended:
		return InfoStyle.Render(" stream closed · q to quit")
	default:
		return InfoStyle.Render(" ↑↓ scroll · q quit ")
	}
}

func (m *Model) renderSidebar() string {
	var b strings.Builder

	b.WriteString(TurnStyle.Render(fmt.Sprintf("turn %d", m.turn)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("rank  %s\n", RankStyle.Render(m.expected)))
	b.WriteString(fmt.Sprintf("pile  %d\n\n", m.pile))

	for _, row := range m.players {
		marker := "  "
		switch {
		case row.Name == m.winner && m.winner != "":
			marker = WinnerStyle.Render("★ ")
		case row.ID == m.current:
			marker = TurnStyle.Render("▸ ")
		}
		b.WriteString(fmt.Sprintf("%s%-10s %2d\n", marker, row.Name, row.Cards))
	}

	return strings.TrimRight(b.String(), "\n")
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	f, _ := v.(float64)
	return int(f)
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
