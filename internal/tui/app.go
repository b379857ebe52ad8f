// Package tui renders a timetable's current week as an interactive grid.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rpggio/weekly/internal/clientsync"
	"github.com/rpggio/weekly/internal/domain/week"
)

type (
	loadedMsg   struct{ err error }
	toggledMsg  struct{ err error }
	snapshotMsg clientsync.Snapshot
)

// Notify returns a listener that forwards syncer changes made outside the
// program, such as a background rollover, to p.
func Notify(p *tea.Program) clientsync.Listener {
	return func(snap clientsync.Snapshot) {
		go p.Send(snapshotMsg(snap))
	}
}

// App is the root Bubble Tea model.
type App struct {
	syncer  *clientsync.Syncer
	timeout time.Duration

	width  int
	height int

	row int
	col int

	snap   clientsync.Snapshot
	help   help.Model
	status string
	isErr  bool
}

// NewApp builds the model. Rollover polling is left to the caller, see
// clientsync.Syncer.Poll and Notify.
func NewApp(syncer *clientsync.Syncer) App {
	return App{
		syncer:  syncer,
		timeout: 10 * time.Second,
		col:     week.DayIndex(time.Now().Weekday()),
		snap:    syncer.Snapshot(),
		help:    help.New(),
	}
}

func (a App) Init() tea.Cmd {
	return a.loadCmd()
}

func (a App) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		return loadedMsg{err: a.syncer.Load(ctx)}
	}
}

func (a App) commitCmd(cmd *clientsync.ToggleCommand) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		_, err := a.syncer.Commit(ctx, cmd)
		return toggledMsg{err: err}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil

	case tea.KeyMsg:
		return a.updateKeys(msg)

	case loadedMsg:
		a.snap = a.syncer.Snapshot()
		a.clampCursor()
		if msg.err != nil && !errors.Is(msg.err, clientsync.ErrBusy) {
			a.setStatus(fmt.Sprintf("Load failed: %v", msg.err), true)
		} else {
			a.setStatus("", false)
		}
		return a, nil

	case toggledMsg:
		a.snap = a.syncer.Snapshot()
		if msg.err != nil {
			a.setStatus(fmt.Sprintf("Toggle failed, reverted: %v", msg.err), true)
		} else {
			a.setStatus("Saved", false)
		}
		return a, nil

	case snapshotMsg:
		// Snapshots may arrive out of order; the syncer holds the latest.
		a.snap = a.syncer.Snapshot()
		a.clampCursor()
		if msg.Archived != nil {
			a.setStatus("New week started", false)
		}
		return a, nil
	}
	return a, nil
}

func (a App) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	case key.Matches(msg, keys.Up):
		if a.row > 0 {
			a.row--
		}
	case key.Matches(msg, keys.Down):
		if a.row < len(a.snap.Week.Activities)-1 {
			a.row++
		}
	case key.Matches(msg, keys.Left):
		if a.col > 0 {
			a.col--
		}
	case key.Matches(msg, keys.Right):
		if a.col < week.DaysPerWeek-1 {
			a.col++
		}
	case key.Matches(msg, keys.Refresh):
		return a, a.loadCmd()
	case key.Matches(msg, keys.Toggle):
		return a.toggle()
	}
	return a, nil
}

func (a App) toggle() (tea.Model, tea.Cmd) {
	acts := a.snap.Week.Activities
	if a.row >= len(acts) {
		return a, nil
	}
	cmd, err := a.syncer.Begin(acts[a.row].Activity.ID, a.col)
	if err != nil {
		a.setStatus(err.Error(), true)
		return a, nil
	}
	a.snap = a.syncer.Snapshot()
	a.setStatus("Saving...", false)
	return a, a.commitCmd(cmd)
}

func (a *App) setStatus(text string, isErr bool) {
	a.status = text
	a.isErr = isErr
}

func (a *App) clampCursor() {
	if n := len(a.snap.Week.Activities); a.row >= n {
		a.row = max(n-1, 0)
	}
}

func (a App) View() string {
	header := a.renderHeader()
	footer := a.renderFooter()
	if !a.snap.Loaded {
		return lipgloss.JoinVertical(lipgloss.Left, header, mutedStyle.Render(" Loading..."), footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, a.renderGrid(), a.renderNotes(), footer)
}

func (a App) renderHeader() string {
	title := titleStyle.Render("weekly")
	if !a.snap.Loaded {
		return headerStyle.Render(title)
	}
	w := a.snap.Week
	span := fmt.Sprintf("%s to %s", w.WeekStartDate.Format("Mon Jan 2"), w.WeekEndDate.Format("Mon Jan 2"))
	overall := fmt.Sprintf("%.2f%%", w.OverallCompletionRate)
	return headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Bottom,
		title, "  ", mutedStyle.Render(span), "  ", overall))
}

func (a App) renderGrid() string {
	var rows []string

	days := []string{nameStyle.Render("")}
	for d := range week.DaysPerWeek {
		days = append(days, dayHeaderStyle.Render(week.DayName(d)[:3]))
	}
	days = append(days, dayHeaderStyle.Render("%"))
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, days...))

	for i, act := range a.snap.Week.Activities {
		cells := []string{nameStyle.Render(truncate(act.Activity.Name, nameWidth-1))}
		for d := range week.DaysPerWeek {
			cells = append(cells, a.renderCell(act.DailyStatus[d], i == a.row && d == a.col))
		}
		cells = append(cells, cellStyle.Render(fmt.Sprintf("%.0f", act.CompletionRate)))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	if len(a.snap.Week.Activities) == 0 {
		rows = append(rows, mutedStyle.Render("No activities"))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) renderCell(done, selected bool) string {
	mark := "·"
	if done {
		mark = "■"
	}
	switch {
	case selected:
		return cursorCellStyle.Render("[" + mark + "]")
	case done:
		return doneCellStyle.Render(mark)
	default:
		return cellStyle.Render(mark)
	}
}

func (a App) renderNotes() string {
	if strings.TrimSpace(a.snap.Week.Notes) == "" {
		return ""
	}
	return mutedStyle.Render(" Notes: " + a.snap.Week.Notes)
}

func (a App) renderFooter() string {
	left := footerStyle.Render(a.help.View(keys))
	var right string
	switch {
	case a.snap.State == clientsync.OptimisticPending:
		right = pendingStyle.Render(" ● " + a.status)
	case a.isErr:
		right = errorStyle.Render(" " + a.status)
	case a.status != "":
		right = mutedStyle.Render(" " + a.status)
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, right)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
