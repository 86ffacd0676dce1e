package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/colborne/fable-engine/pkg/actor"
	"github.com/colborne/fable-engine/pkg/encounter"
	"github.com/colborne/fable-engine/pkg/story"
)

const (
	NarratorName    = "Narrator"
	PlaceHolderText = "Type your message here..."
	storyFetchLimit = 100
	refreshInterval = 3 * time.Second
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config        *ConsoleConfig
	client        *http.Client
	owner         *actor.Record
	encounter     *encounter.Encounter
	messages      []story.Message
	storyViewport viewport.Model
	metaViewport  viewport.Model
	textarea      textarea.Model
	ready         bool
	width         int
	height        int
	err           error
	loading       bool
	statusLine    string

	// Quit confirmation state
	showQuitModal bool
}

type storyWindowMsg struct {
	messages []story.Message
	err      error
}

type encounterMsg struct {
	encounter *encounter.Encounter
	err       error
}

type appendResultMsg struct {
	message *story.Message
	err     error
}

type refreshTickMsg struct{}

var (
	storyPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	playerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	downStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // red
			Bold(true)

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")) // bright green

	woundedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

var titleCaser = cases.Title(language.English)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client, owner *actor.Record) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	storyVp := viewport.New(50, 20)
	storyVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:        cfg,
		client:        client,
		owner:         owner,
		textarea:      ta,
		storyViewport: storyVp,
		metaViewport:  metaVp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.loadStory(), m.loadEncounter(), refreshTick(), textarea.Blink)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.storyViewport, vpCmd = m.storyViewport.Update(msg)
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		storyWidth := int(float64(m.width)*0.7) - 4
		metaWidth := m.width - storyWidth - 6

		m.storyViewport.Width = storyWidth - 2
		m.storyViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(storyWidth - 4)

		m.ready = true
		m.writeStoryContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlY:
			if err := clipboard.WriteAll(m.plainStoryText()); err != nil {
				m.statusLine = "Copy failed: " + err.Error()
			} else {
				m.statusLine = "Story log copied to clipboard"
			}
			m.metaViewport.SetContent(m.writeMetadata())
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.loading = true
			return m, m.appendMessage(input)
		}

	case appendResultMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.messages = append(m.messages, *msg.message)
			m.writeStoryContent()
		}
		return m, tea.Batch(m.loadStory(), m.loadEncounter())

	case storyWindowMsg:
		if msg.err == nil {
			m.messages = msg.messages
			m.writeStoryContent()
		}

	case encounterMsg:
		if msg.err == nil {
			m.encounter = msg.encounter
			m.metaViewport.SetContent(m.writeMetadata())
		}

	case refreshTickMsg:
		return m, tea.Batch(m.loadStory(), m.loadEncounter(), refreshTick())
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.storyViewport, vpCmd = m.storyViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// writeStoryContent reformats the full story log for the current width.
func (m *ConsoleUI) writeStoryContent() {
	storyWidth := m.storyViewport.Width - 6
	if storyWidth < 10 {
		storyWidth = 10
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("FABLE ENGINE") + "\n\n")
	content.WriteString("Type your messages below to add to the story.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", storyWidth)) + "\n\n")

	for _, msg := range m.messages {
		content.WriteString(formatMessage(msg, storyWidth) + "\n\n")
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}

	m.storyViewport.SetContent(content.String())
	m.storyViewport.GotoBottom()
}

func formatMessage(msg story.Message, width int) string {
	speaker := NarratorName
	style := narratorStyle
	if msg.Role == story.RolePlayer {
		speaker = "You"
		style = playerStyle
	}

	prefix := style.Render(speaker + ": ")
	body := wordwrap.String(msg.Content, width-len(speaker)-2)
	out := prefix + body
	if len(msg.Tags) > 0 {
		out += "\n" + tagStyle.Render("["+strings.Join(msg.Tags, ", ")+"]")
	}
	return out
}

// plainStoryText renders the log without styling, for the clipboard.
func (m ConsoleUI) plainStoryText() string {
	var sb strings.Builder
	for _, msg := range m.messages {
		speaker := NarratorName
		if msg.Role == story.RolePlayer {
			speaker = "You"
		}
		sb.WriteString(speaker + ": " + msg.Content + "\n")
	}
	return sb.String()
}

func (m ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("PARTY") + "\n\n")

	content.WriteString(m.owner.Name + "\n")
	content.WriteString(renderHPBar(m.owner.Vitality, m.owner.MaxVitality, 14) + "\n\n")

	content.WriteString(titleStyle.Render("ENCOUNTER") + "\n\n")
	if m.encounter == nil {
		content.WriteString("Not in combat\n")
	} else {
		desc := m.encounter.Description
		if desc == "" {
			desc = "Battle in progress"
		}
		content.WriteString(desc + "\n\n")
		content.WriteString(m.renderTeam(titleCaser.String(string(encounter.TeamPlayer))+" Team", m.encounter.TeamPlayer))
		content.WriteString("\n")
		content.WriteString(m.renderTeam(titleCaser.String(string(encounter.TeamEnemy))+" Team", m.encounter.TeamEnemy))
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• Ctrl+Y: Copy log\n")
	content.WriteString("• Ctrl+C: Quit\n")

	if m.statusLine != "" {
		content.WriteString("\n" + tagStyle.Render(m.statusLine) + "\n")
	}

	return content.String()
}

func (m ConsoleUI) renderTeam(header string, team []encounter.Combatant) string {
	var sb strings.Builder
	sb.WriteString(header + ":\n")
	for _, c := range team {
		sb.WriteString(c.Name)
		if c.IsDown() {
			sb.WriteString(" " + downStyle.Render("DOWN"))
		}
		sb.WriteString("\n")
		sb.WriteString(renderHPBar(c.Vitality, c.MaxVitality, 14) + "\n")
	}
	return sb.String()
}

// renderHPBar draws a fixed-width vitality bar colored by remaining fraction.
func renderHPBar(current, max, width int) string {
	if max < 1 {
		max = 1
	}
	if current < 0 {
		current = 0
	}
	filled := current * width / max
	if filled > width {
		filled = width
	}

	style := healthyStyle
	switch {
	case current == 0:
		style = downStyle
	case current*2 < max:
		style = woundedStyle
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return style.Render(bar) + fmt.Sprintf(" %d/%d", current, max)
}

func (m ConsoleUI) loadStory() tea.Cmd {
	return func() tea.Msg {
		messages, err := getStoryWindow(m.client, m.config.APIBaseURL, m.config.OwnerID, storyFetchLimit)
		return storyWindowMsg{messages, err}
	}
}

func (m ConsoleUI) loadEncounter() tea.Cmd {
	return func() tea.Msg {
		enc, err := getActiveEncounter(m.client, m.config.APIBaseURL, m.config.OwnerID)
		return encounterMsg{enc, err}
	}
}

func (m ConsoleUI) appendMessage(content string) tea.Cmd {
	return func() tea.Msg {
		// Player messages narrated during combat carry the encounter tag so
		// they compact away with the rest of the fight.
		var tags []string
		if m.encounter != nil && m.encounter.IsActive() {
			tags = []string{m.encounter.Tag()}
		}
		msg, err := appendStoryMessage(m.client, m.config.APIBaseURL, m.config.OwnerID, content, tags)
		return appendResultMsg{msg, err}
	}
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to leave the story?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	storyWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - storyWidth - 6

	storyPanel := storyPanelStyle.Width(storyWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.storyViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", storyWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, storyPanel, metaPanel)
}
