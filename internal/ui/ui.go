package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"simpletodo/internal/config"
	"simpletodo/internal/notify"
	"simpletodo/internal/tasklist"
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
	modeDue
	modeSearch
)

const minTick = 50 * time.Millisecond

// commitTickMsg asks the model to commit deletions whose undo window ran out.
type commitTickMsg struct{}

// notificationMsg carries a bus notification into the update loop.
type notificationMsg notify.Notification

type Model struct {
	ctx     context.Context
	ctrl    *tasklist.Controller
	cfg     config.Config
	now     func() time.Time
	tasks   []tasklist.Task
	cursor  int
	mode    mode
	input   textinput.Model
	status  string
	shown   notify.Notification
	query   string
	undo    []tasklist.Token
	ticking bool
}

func New(ctx context.Context, ctrl *tasklist.Controller, cfg config.Config) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40

	m := Model{
		ctx:    ctx,
		ctrl:   ctrl,
		cfg:    cfg,
		now:    time.Now,
		input:  ti,
		mode:   modeList,
		status: fmt.Sprintf("Press '%s' to add, '%s' to delete, '%s' to undo.", cfg.Keys.Add, cfg.Keys.Delete, cfg.Keys.Undo),
	}
	m.refresh()
	return m
}

// Run starts the terminal UI. Notifications published on bus show up in the
// status line. start, when not nil, runs once the bus is attached and before
// the first frame, so whatever it publishes reaches the screen.
func Run(ctx context.Context, ctrl *tasklist.Controller, bus *notify.Bus, cfg config.Config, start func(context.Context)) error {
	program := tea.NewProgram(New(ctx, ctrl, cfg), tea.WithContext(ctx))
	// Publishers may be running inside Update, so never block on Send.
	// Sends made before program.Run wait for the event loop.
	attach(ctx, bus, func(msg tea.Msg) { go program.Send(msg) }, start)
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// attach routes bus notifications to send and then runs start.
func attach(ctx context.Context, bus *notify.Bus, send func(tea.Msg), start func(context.Context)) {
	if bus != nil {
		bus.Subscribe(func(n notify.Notification) { send(notificationMsg(n)) })
	}
	if start != nil {
		start(ctx)
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	case commitTickMsg:
		return m.commitExpired()
	case notificationMsg:
		m.showNotification(notify.Notification(msg))
	}
	return m, nil
}

// showNotification puts n in the status line. A retraction only clears
// the status when it still shows that reminder.
func (m *Model) showNotification(n notify.Notification) {
	if n.Level == notify.LevelRetracted {
		if m.shown.Level == notify.LevelReminder && m.shown.Key == n.Key &&
			m.status == describeNotification(m.shown) {
			m.status = ""
			m.shown = notify.Notification{}
		}
		return
	}
	m.status = describeNotification(n)
	m.shown = n
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch m.mode {
	case modeAdd, modeEdit, modeDue, modeSearch:
		return m.updateInputMode(key, msg)
	default:
		return m.updateListMode(key)
	}
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		m.cursor = clampCursor(m.cursor+1, len(m.tasks))
	case m.cfg.Keys.Up, "up":
		m.cursor = clampCursor(m.cursor-1, len(m.tasks))
	case m.cfg.Keys.Add:
		return m.startInput(modeAdd, "Task title", "", "Add mode: type a title and press Enter")
	case m.cfg.Keys.Edit:
		t, ok := m.selected()
		if !ok {
			m.status = "No tasks to edit"
			return m, nil
		}
		return m.startInput(modeEdit, "Task title", t.Title, "Edit title and press Enter")
	case m.cfg.Keys.Due:
		t, ok := m.selected()
		if !ok {
			m.status = "No tasks to schedule"
			return m, nil
		}
		return m.startInput(modeDue, dueLayout, formatDueInput(t.Date), "Due date as "+dueLayout+", empty to clear")
	case m.cfg.Keys.Search:
		return m.startInput(modeSearch, "Search titles", m.query, "Type to search, Enter to apply")
	case m.cfg.Keys.Cancel:
		if m.query != "" {
			m.query = ""
			m.status = "Search cleared"
			m.refresh()
		}
	case m.cfg.Keys.MoveUp:
		return m.move(-1)
	case m.cfg.Keys.MoveDown:
		return m.move(1)
	case m.cfg.Keys.Delete:
		return m.remove()
	case m.cfg.Keys.Undo:
		return m.undoLast()
	}
	return m, nil
}

func (m Model) startInput(next mode, placeholder, value, status string) (tea.Model, tea.Cmd) {
	m.mode = next
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.status = status
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) updateInputMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel:
		m = m.endInput()
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.Confirm:
		return m.submit(strings.TrimSpace(m.input.Value()))
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) endInput() Model {
	m.mode = modeList
	m.input.SetValue("")
	m.input.Blur()
	return m
}

func (m Model) submit(value string) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeAdd:
		if value == "" {
			m.status = "Title cannot be empty"
			return m, nil
		}
		t, err := m.ctrl.Add(m.ctx, value, 0)
		if err != nil {
			m.status = fmt.Sprintf("save failed: %v", err)
			return m, nil
		}
		m = m.endInput()
		m.refresh()
		m.focus(t.ID)
		m.status = "Added task"
	case modeEdit:
		if value == "" {
			m.status = "Title cannot be empty"
			return m, nil
		}
		t, _ := m.selected()
		if _, err := m.ctrl.Edit(m.ctx, m.ctrl.IndexOf(t.ID), value, t.Date); err != nil {
			m.status = fmt.Sprintf("save failed: %v", err)
			return m, nil
		}
		m = m.endInput()
		m.refresh()
		m.status = "Title saved"
	case modeDue:
		due, err := ParseDue(value, m.now().Location())
		if err != nil {
			m.status = fmt.Sprintf("due date invalid: %v", err)
			return m, nil
		}
		t, _ := m.selected()
		if _, err := m.ctrl.Edit(m.ctx, m.ctrl.IndexOf(t.ID), t.Title, due); err != nil {
			m.status = fmt.Sprintf("save failed: %v", err)
			return m, nil
		}
		m = m.endInput()
		m.refresh()
		if due == 0 {
			m.status = "Due date cleared"
		} else {
			m.status = "Reminder set for " + FormatDue(due, m.now())
		}
	case modeSearch:
		m = m.endInput()
		m.query = value
		m.cursor = 0
		m.refresh()
		if value == "" {
			m.status = "Search cleared"
		} else {
			m.status = fmt.Sprintf("%d match(es) for %q", len(m.tasks), value)
		}
	}
	return m, nil
}

func (m Model) move(delta int) (tea.Model, tea.Cmd) {
	if m.query != "" {
		m.status = "Reordering is disabled while searching"
		return m, nil
	}
	if len(m.tasks) == 0 {
		return m, nil
	}
	to := m.cursor + delta
	if to < 0 || to >= len(m.tasks) {
		return m, nil
	}
	if err := m.ctrl.Move(m.cursor, to); err != nil {
		m.status = fmt.Sprintf("move failed: %v", err)
		return m, nil
	}
	m.cursor = to
	m.refresh()
	m.status = "Moved task"
	return m, nil
}

func (m Model) remove() (tea.Model, tea.Cmd) {
	t, ok := m.selected()
	if !ok {
		return m, nil
	}
	p, err := m.ctrl.Remove(m.ctrl.IndexOf(t.ID))
	if err != nil {
		m.status = fmt.Sprintf("delete failed: %v", err)
		return m, nil
	}
	m.undo = append(m.undo, p.Token)
	m.refresh()
	m.status = fmt.Sprintf("Deleted %q, press '%s' to undo", t.Title, m.cfg.Keys.Undo)
	return m, m.scheduleTick()
}

func (m Model) undoLast() (tea.Model, tea.Cmd) {
	for len(m.undo) > 0 {
		token := m.undo[len(m.undo)-1]
		m.undo = m.undo[:len(m.undo)-1]

		t, err := m.ctrl.Undo(token)
		if errors.Is(err, tasklist.ErrNoPendingDeletion) {
			continue
		}
		if err != nil {
			m.status = fmt.Sprintf("undo failed: %v", err)
			return m, nil
		}
		m.refresh()
		m.focus(t.ID)
		m.status = fmt.Sprintf("Restored %q", t.Title)
		return m, nil
	}
	m.status = "Nothing to undo"
	return m, nil
}

func (m Model) commitExpired() (tea.Model, tea.Cmd) {
	m.ticking = false
	n, err := m.ctrl.CommitExpired(m.ctx, m.now())
	if err != nil {
		m.status = fmt.Sprintf("delete failed: %v", err)
	}
	if n > 0 {
		m.refresh()
	}
	if len(m.ctrl.Pending()) == 0 {
		m.undo = nil
		return m, nil
	}
	return m, m.scheduleTick()
}

// scheduleTick arms a single timer for the earliest undo deadline.
func (m *Model) scheduleTick() tea.Cmd {
	if m.ticking {
		return nil
	}
	deadline, ok := m.ctrl.NextDeadline()
	if !ok {
		return nil
	}
	d := deadline.Sub(m.now())
	if d < minTick {
		d = minTick
	}
	m.ticking = true
	return tea.Tick(d, func(time.Time) tea.Msg { return commitTickMsg{} })
}

// refresh reloads the visible tasks from the controller, applying the
// active search.
func (m *Model) refresh() {
	if m.query == "" {
		m.tasks = m.ctrl.Tasks()
	} else {
		found, err := m.ctrl.Search(m.ctx, m.query)
		if err != nil {
			m.status = fmt.Sprintf("search failed: %v", err)
			found = nil
		}
		m.tasks = found
	}
	m.cursor = clampCursor(m.cursor, len(m.tasks))
}

func (m *Model) focus(id int64) {
	for i, t := range m.tasks {
		if t.ID == id {
			m.cursor = i
			return
		}
	}
}

func (m Model) selected() (tasklist.Task, bool) {
	if len(m.tasks) == 0 {
		return tasklist.Task{}, false
	}
	return m.tasks[clampCursor(m.cursor, len(m.tasks))], true
}

func describeNotification(n notify.Notification) string {
	switch n.Level {
	case notify.LevelReminder:
		return "Reminder: " + n.Message
	case notify.LevelWarning:
		return "Warning: " + n.Message
	case notify.LevelError:
		return "Error: " + n.Message
	default:
		return n.Message
	}
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
