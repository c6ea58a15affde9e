// Package picker implements the terminal browser: a Bubble Tea model that
// scrolls an arbitrarily long item list through a pager.
package picker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/runger/ringlist/internal/config"
	"github.com/runger/ringlist/internal/pager"
)

// debounceInterval is the delay after the last keystroke before the query
// is applied.
const debounceInterval = 100 * time.Millisecond

// chrome is the number of rows not used by the list: status and query line.
const chrome = 2

// pickerState represents the current state of the browser's state machine.
type pickerState int

const (
	stateIdle      pickerState = iota // Before the first load
	stateLoaded                       // At least one row resident
	stateEmpty                        // Load succeeded with no matching items
	stateError                        // Last operation failed
	stateCancelled                    // User quit without selecting
)

type opKind int

const (
	opReload opKind = iota
	opNext
	opPrevious
	opResize
)

func (k opKind) String() string {
	switch k {
	case opReload:
		return "reload"
	case opNext:
		return "next"
	case opPrevious:
		return "previous"
	case opResize:
		return "resize"
	default:
		return "unknown"
	}
}

// opDoneMsg is sent when a pager operation finishes. snap is taken before
// the operation releases the pager.
type opDoneMsg struct {
	op   opKind
	snap snapshot
	err  error
}

// debounceMsg fires after the debounce timer expires.
type debounceMsg struct {
	id uint64 // Must match the current debounceID to be accepted
}

// initMsg is sent by Init to start the first load through Update.
type initMsg struct{}

// snapshot is a copy of the visible rows, safe to render while the pager
// is busy with the next operation.
type snapshot struct {
	rows        []Row
	total       int
	hasNext     bool
	hasPrevious bool
}

func (s snapshot) first() int { return s.rows[0].Index }
func (s snapshot) last() int  { return s.rows[len(s.rows)-1].Index }

// Model is the Bubble Tea model for the item browser.
//
// The pager is owned by at most one operation at a time: while loading is
// set, navigation is ignored and View renders the last snapshot.
type Model struct {
	pager  *pager.Pager[*Row]
	loader *rowLoader
	logger *slog.Logger

	keys    keyMap
	spinner spinner.Model

	state   pickerState
	loading bool
	err     error
	snap    snapshot

	cursor int // Dataset index of the selected item
	top    int // Dataset index of the first visible row

	query         string // Current input
	appliedQuery  string // Query the resident pages were loaded for
	pendingReload bool   // Query changed while loading
	debounceID    uint64

	edgeMargin      int
	defaultPageSize int
	maxPageSize     int

	width  int
	height int

	result string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewModel creates a browser over provider. Pager sizing comes from cfg.Pager
// and the load trigger distance from cfg.Browse.
func NewModel(provider Provider, cfg *config.Config, logger *slog.Logger) (Model, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loader := &rowLoader{provider: provider}
	p, err := newRowPager(loader, cfg.Pager, logger)
	if err != nil {
		return Model{}, fmt.Errorf("picker: %w", err)
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = dimStyle

	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		pager:           p,
		loader:          loader,
		logger:          logger,
		keys:            defaultKeys,
		spinner:         sp,
		state:           stateIdle,
		edgeMargin:      max(cfg.Browse.EdgeMargin, 0),
		defaultPageSize: cfg.Pager.PageSize,
		maxPageSize:     p.MaxPageSize(),
		ctx:             ctx,
		cancel:          cancel,
	}, nil
}

// WithQuery returns the model with an initial query.
func (m Model) WithQuery(q string) Model {
	m.query = q
	return m
}

// Result returns the text of the selected item, or "" if cancelled.
func (m Model) Result() string {
	return m.result
}

// IsCancelled reports whether the user quit without selecting.
func (m Model) IsCancelled() bool {
	return m.state == stateCancelled
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return initMsg{} })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		cmd := m.applySize()
		return m, cmd

	case opDoneMsg:
		return m.handleOpDone(msg)

	case debounceMsg:
		if msg.id != m.debounceID {
			return m, nil // Stale debounce timer; ignore.
		}
		cmd := m.reloadIfChanged()
		return m, cmd

	case initMsg:
		if _, err := m.pager.PageSize(); err != nil {
			if err := m.pager.SetPageSize(m.wantPageSize()); err != nil {
				m.fail(err)
				return m, nil
			}
		}
		cmd := m.startOp(opReload)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.state = stateCancelled
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Select):
		if row, ok := m.selected(); ok {
			m.result = row.Text
		}
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		cmd := m.moveCursor(-1)
		return m, cmd
	case key.Matches(msg, m.keys.Down):
		cmd := m.moveCursor(1)
		return m, cmd
	case key.Matches(msg, m.keys.PageUp):
		cmd := m.moveCursor(-m.listHeight())
		return m, cmd
	case key.Matches(msg, m.keys.PageDown):
		cmd := m.moveCursor(m.listHeight())
		return m, cmd

	case key.Matches(msg, m.keys.Refresh):
		if m.loading {
			m.pendingReload = true
			return m, nil
		}
		cmd := m.startOp(opReload)
		return m, cmd
	}

	switch msg.Type {
	case tea.KeyBackspace:
		if m.query == "" {
			return m, nil
		}
		runes := []rune(m.query)
		m.query = string(runes[:len(runes)-1])
		cmd := m.startDebounce()
		return m, cmd

	case tea.KeyRunes, tea.KeySpace:
		if len(m.query)+len(string(msg.Runes)) > MaxQueryLen {
			return m, nil
		}
		m.query += string(msg.Runes)
		cmd := m.startDebounce()
		return m, cmd
	}

	return m, nil
}

// moveCursor moves the selection by delta rows within the resident rows
// and requests a page when the cursor nears either end of them.
func (m *Model) moveCursor(delta int) tea.Cmd {
	if m.loading || len(m.snap.rows) == 0 {
		return nil
	}
	m.cursor = clamp(m.cursor+delta, m.snap.first(), m.snap.last())
	m.scrollToCursor()
	return m.loadNearEdge()
}

// loadNearEdge starts Next or Previous when the cursor is within
// edgeMargin rows of the resident span.
func (m *Model) loadNearEdge() tea.Cmd {
	if m.loading || m.state == stateError || len(m.snap.rows) == 0 {
		return nil
	}
	switch {
	case m.snap.hasNext && m.cursor >= m.snap.last()-m.edgeMargin:
		return m.startOp(opNext)
	case m.snap.hasPrevious && m.cursor <= m.snap.first()+m.edgeMargin:
		return m.startOp(opPrevious)
	}
	return nil
}

// applySize resizes pages to the list height. It is deferred while an
// operation runs and re-evaluated when the operation completes.
func (m *Model) applySize() tea.Cmd {
	want := m.wantPageSize()
	current, err := m.pager.PageSize()
	switch {
	case m.loading:
		return nil
	case err != nil:
		// Nothing loaded yet; initMsg picks the size up.
		return nil
	case want == current:
		return nil
	}
	return m.startOp(opResize)
}

func (m *Model) reloadIfChanged() tea.Cmd {
	if m.query == m.appliedQuery && m.state != stateError {
		return nil
	}
	if m.loading {
		m.pendingReload = true
		return nil
	}
	return m.startOp(opReload)
}

// startDebounce increments the debounce counter and returns a tea.Tick
// command that fires after debounceInterval.
func (m *Model) startDebounce() tea.Cmd {
	m.debounceID++
	id := m.debounceID
	return tea.Tick(debounceInterval, func(time.Time) tea.Msg {
		return debounceMsg{id: id}
	})
}

// startOp marks the pager busy and returns a command that runs op on it.
func (m *Model) startOp(op opKind) tea.Cmd {
	m.loading = true

	p, loader, ctx := m.pager, m.loader, m.ctx
	query := m.query
	pageSize := m.wantPageSize()
	cursor := m.cursor

	return func() tea.Msg {
		var err error
		switch op {
		case opReload:
			loader.query = query
			p.Reset(0)
			_, err = p.Next(ctx)
		case opNext:
			_, err = p.Next(ctx)
		case opPrevious:
			_, err = p.Previous(ctx)
		case opResize:
			err = resizeRows(ctx, p, pageSize, cursor)
		}
		return opDoneMsg{op: op, snap: takeSnapshot(p), err: err}
	}
}

// handleOpDone adopts the snapshot of a finished operation and starts any
// work deferred while it ran.
func (m Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	m.snap = msg.snap

	if msg.op == opReload {
		m.appliedQuery = m.loader.query
		m.cursor, m.top = 0, 0
	}

	if msg.err != nil && !errors.Is(msg.err, pager.ErrBoundary) && !errors.Is(msg.err, pager.ErrSamePageSize) {
		m.logger.Error("pager operation failed", "op", msg.op, "error", msg.err)
		m.fail(msg.err)
	} else {
		if msg.err != nil {
			m.logger.Debug("navigation stopped", "op", msg.op, "reason", msg.err)
		}
		m.err = nil
		m.state = stateLoaded
		if len(m.snap.rows) == 0 {
			m.state = stateEmpty
		}
	}
	if len(m.snap.rows) > 0 {
		m.cursor = clamp(m.cursor, m.snap.first(), m.snap.last())
		m.scrollToCursor()
	}

	if m.pendingReload {
		m.pendingReload = false
		cmd := m.startOp(opReload)
		return m, cmd
	}
	if m.state == stateError {
		return m, nil
	}
	// Edge loads are only triggered by cursor movement. Chaining them here
	// would walk the whole dataset when pages are smaller than edgeMargin.
	cmd := m.applySize()
	return m, cmd
}

func (m *Model) fail(err error) {
	m.state = stateError
	m.err = err
}

// takeSnapshot copies the visible rows of the resident span.
func takeSnapshot(p *pager.Pager[*Row]) snapshot {
	snap := snapshot{
		hasNext:     p.HasNext(),
		hasPrevious: p.HasPrevious(),
	}
	snap.total, _ = p.Total()

	span, err := p.Span()
	if err != nil {
		return snap
	}
	slots, err := p.SlotsIn(span)
	if err != nil {
		return snap
	}
	for _, row := range slots {
		if row.Loaded && !row.Hidden {
			snap.rows = append(snap.rows, *row)
		}
	}
	return snap
}

// selected returns the row under the cursor.
func (m Model) selected() (Row, bool) {
	if len(m.snap.rows) == 0 {
		return Row{}, false
	}
	i := m.cursor - m.snap.first()
	if i < 0 || i >= len(m.snap.rows) {
		return Row{}, false
	}
	return m.snap.rows[i], true
}

// scrollToCursor keeps the cursor inside the visible rows.
func (m *Model) scrollToCursor() {
	h := m.listHeight()
	if m.cursor < m.top {
		m.top = m.cursor
	}
	if m.cursor >= m.top+h {
		m.top = m.cursor - h + 1
	}
	m.top = clamp(m.top, m.snap.first(), max(m.snap.first(), m.snap.last()-h+1))
}

// listHeight returns the number of visible list rows.
func (m Model) listHeight() int {
	if m.height <= chrome {
		return max(m.defaultPageSize, 1)
	}
	return m.height - chrome
}

// wantPageSize is the page size matching the list height, bounded by what
// the ring can hold.
func (m Model) wantPageSize() int {
	return clamp(m.listHeight(), 1, max(m.maxPageSize, 1))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// --- View rendering ---

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	queryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.viewContent())
	b.WriteRune('\n')
	b.WriteString(m.viewStatus())
	b.WriteRune('\n')
	b.WriteString(m.viewQuery())
	return b.String()
}

// viewContent renders the item list or a placeholder.
func (m Model) viewContent() string {
	switch {
	case len(m.snap.rows) > 0:
		return m.viewList()
	case m.state == stateIdle:
		return dimStyle.Render("Loading...")
	case m.state == stateEmpty:
		return dimStyle.Render("No matches")
	default:
		return ""
	}
}

// viewList renders the visible rows with a selection marker.
func (m Model) viewList() string {
	h := m.listHeight()
	start := m.top - m.snap.first()
	end := min(start+h, len(m.snap.rows))

	lines := make([]string, 0, h)
	for i := max(start, 0); i < end; i++ {
		row := m.snap.rows[i]
		display := row.Text
		if m.width > 2 {
			display = MiddleTruncate(display, m.width-2)
		}
		if row.Index == m.cursor {
			lines = append(lines, selectedStyle.Render("> "+display))
		} else {
			lines = append(lines, normalStyle.Render("  "+display))
		}
	}
	return strings.Join(lines, "\n")
}

// viewStatus renders the position, the spinner while loading, or an error.
func (m Model) viewStatus() string {
	if m.state == stateError && m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %s (ctrl+r to reload)", m.err))
	}
	var status string
	if len(m.snap.rows) > 0 {
		status = dimStyle.Render(fmt.Sprintf("%d/%d", m.cursor+1, m.snap.total))
	}
	if m.loading {
		status += " " + m.spinner.View()
	}
	return status
}

// viewQuery renders the query input line.
func (m Model) viewQuery() string {
	return queryStyle.Render("> ") + m.query
}
