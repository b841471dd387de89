package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
)

var (
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444"))

	focusedPaneStyle = paneStyle.
				BorderForeground(lipgloss.Color("#7D56F4"))
)

// entry is one row of the browser: a job or a diagnostic together with
// the method it belongs to.
type entry struct {
	title  string
	detail string
	method *il.MethodDef
}

func (e entry) Title() string       { return e.title }
func (e entry) Description() string { return e.detail }
func (e entry) FilterValue() string { return e.title + " " + e.detail }

// entries lists the jobs and diagnostics of reports, resolving methods
// in the processed modules.
func entries(reports []*fileReport, mods map[string]*il.Module) []list.Item {
	var items []list.Item
	for _, r := range reports {
		if r.Result == nil {
			continue
		}
		mod := mods[r.File]
		for _, j := range r.Result.Jobs {
			items = append(items, entry{
				title:  jobStyle.Render(j.Struct),
				detail: j.System + "::" + j.Method + " " + jobMode(j),
				method: findMethod(mod, j.System+"::"+j.Method),
			})
		}
		for _, d := range r.Result.Diagnostics {
			items = append(items, entry{
				title:  diagTitle(d),
				detail: d.Message,
				method: findMethod(mod, d.Method),
			})
		}
	}
	return items
}

func diagTitle(d diag.Diagnostic) string {
	title := d.Severity.String() + " " + string(d.Code)
	if d.Location.Known() {
		title += " " + d.Location.String()
	}
	if d.Severity == diag.SeverityWarning {
		return warningStyle.Render(title)
	}
	return errorStyle.Render(title)
}

// findMethod resolves a Type::method name in mod.
func findMethod(mod *il.Module, fullName string) *il.MethodDef {
	if mod == nil {
		return nil
	}
	typeName, name, ok := strings.Cut(fullName, "::")
	if !ok {
		return nil
	}
	t := mod.FindType(typeName)
	if t == nil {
		return nil
	}
	return t.Method(name)
}

type browser struct {
	list     list.Model
	view     viewport.Model
	shown    int
	onDump   bool
	ready    bool
	emptyMsg string
}

func newBrowser(title string, items []list.Item) *browser {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.Styles.Title = titleStyle
	l.SetShowHelp(false)
	return &browser{list: l, shown: -1, emptyMsg: "no method to show"}
}

func (b *browser) Init() tea.Cmd {
	return nil
}

func (b *browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		listWidth := msg.Width / 3
		height := msg.Height - 3
		b.list.SetSize(listWidth, height)
		if !b.ready {
			b.view = viewport.New(msg.Width-listWidth-4, height)
			b.ready = true
		} else {
			b.view.Width = msg.Width - listWidth - 4
			b.view.Height = height
		}
		b.refresh()
		return b, nil

	case tea.KeyMsg:
		if b.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return b, tea.Quit
		case "tab":
			b.onDump = !b.onDump
			return b, nil
		}
	}

	var cmd tea.Cmd
	if b.onDump {
		b.view, cmd = b.view.Update(msg)
	} else {
		b.list, cmd = b.list.Update(msg)
		b.refresh()
	}
	return b, cmd
}

// refresh loads the dump of the selected entry into the viewport.
func (b *browser) refresh() {
	if !b.ready || b.list.Index() == b.shown {
		return
	}
	b.shown = b.list.Index()
	e, ok := b.list.SelectedItem().(entry)
	if !ok || e.method == nil {
		b.view.SetContent(helpStyle.Render(b.emptyMsg))
		return
	}
	var s strings.Builder
	_ = il.DumpType(&s, e.method.DeclaringType)
	b.view.SetContent(il.DumpString(e.method) + "\n" + s.String())
	b.view.GotoTop()
}

func (b *browser) View() string {
	if !b.ready {
		return "Loading..."
	}
	left, right := paneStyle, focusedPaneStyle
	if !b.onDump {
		left, right = right, left
	}
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		left.Render(b.list.View()),
		right.Render(b.view.View()),
	)
	help := helpStyle.Render(fmt.Sprintf("↑/↓ select • / filter • tab switch pane • q quit • %d%%", int(b.view.ScrollPercent()*100)))
	return panes + "\n" + help
}

func runInteractive(title string, items []list.Item) error {
	p := tea.NewProgram(newBrowser(title, items), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
