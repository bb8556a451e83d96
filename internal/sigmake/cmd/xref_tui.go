package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/v2/list"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"

	"sigmake/internal/sig"
	"sigmake/internal/sigmaker"
)

type xrefItem struct {
	origin   uint64
	text     string // formatted signature
	entries  int
	function string
}

func (i xrefItem) Title() string       { return fmt.Sprintf("%x  %s", i.origin, i.text) }
func (i xrefItem) Description() string { return "" }
func (i xrefItem) FilterValue() string { return i.function + " " + i.text }

// xrefDelegate renders one ranked signature per row.
type xrefDelegate struct{}

func (d xrefDelegate) Height() int                               { return 1 }
func (d xrefDelegate) Spacing() int                              { return 0 }
func (d xrefDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d xrefDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(xrefItem)
	if !ok {
		return
	}

	var itemAddrStyle lipgloss.Style
	var indicator string
	if index == m.Index() {
		indicator = ">"
		itemAddrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	} else {
		indicator = " "
		itemAddrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	}

	sizeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	line := fmt.Sprintf(" %s  %s  %s %s",
		indicator,
		itemAddrStyle.Render(fmt.Sprintf("%x", i.origin)),
		i.text,
		sizeStyle.Render(fmt.Sprintf("(%d bytes)", i.entries)))
	if i.function != "" {
		line += "  " + sizeStyle.Render(i.function)
	}
	fmt.Fprint(w, line)
}

type xrefModel struct {
	results list.Model
	width   int
	height  int
	copied  string
}

func newXRefModel(target uint64, items []list.Item) xrefModel {
	l := list.New(items, xrefDelegate{}, 80, 24)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Title = fmt.Sprintf("XREF signatures for %x (shortest first)", target)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)
	l.SetShowHelp(true)
	return xrefModel{results: l, width: 80, height: 24}
}

func (m xrefModel) Init() tea.Cmd { return nil }

func (m xrefModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.results.SetWidth(msg.Width)
		m.results.SetHeight(msg.Height - 2)

	case tea.KeyMsg:
		if m.results.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "enter":
			if selected := m.results.SelectedItem(); selected != nil {
				if item, ok := selected.(xrefItem); ok {
					copyToClipboard(item.text)
					m.copied = item.text
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m xrefModel) View() string {
	menu := " Enter: copy signature • /: filter • Q: quit "
	if m.copied != "" {
		menu = " Copied! • Q: quit "
	}
	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)
	return m.results.View() + "\n" + menuStyle.Render(menu)
}

func runXRefTUI(t *target, ea uint64, results []sigmaker.XRefResult, sigType sig.Type) error {
	items := make([]list.Item, 0, len(results))
	for _, r := range results {
		items = append(items, xrefItem{
			origin:   r.Origin,
			text:     sig.Format(r.Signature, sigType),
			entries:  len(r.Signature),
			function: functionLabel(t.im, r.Origin),
		})
	}

	program := tea.NewProgram(newXRefModel(ea, items), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
