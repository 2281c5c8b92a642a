package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/pipeview/internal/approval"
	"github.com/five82/pipeview/internal/config"
	"github.com/five82/pipeview/internal/metrics"
	"github.com/five82/pipeview/internal/pipeline"
	"github.com/five82/pipeview/internal/prefs"
	"github.com/five82/pipeview/internal/selection"
	"github.com/five82/pipeview/internal/stagelog"
	"github.com/five82/pipeview/internal/state"
	"github.com/five82/pipeview/internal/viewer"
)

const flashTTL = 5 * time.Second

// errReadOnly is reported when a command is confirmed without a commander.
var errReadOnly = errors.New("viewer is read-only")

// Options configures the UI.
type Options struct {
	Context      context.Context
	Store        *state.Store
	Logs         stagelog.Fetcher
	Commander    approval.Commander
	DeploymentID string
	Config       *config.Config
	PollTick     time.Duration
	ThemeName    string
	Follow       bool
	PrefsPath    string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx          context.Context
	store        *state.Store
	commander    approval.Commander
	deploymentID string
	prefsPath    string
	pollTick     time.Duration

	// Pipeline state; the session is shared between model copies.
	session  *viewer.Session
	snapshot state.Snapshot
	version  uint64

	// UI state
	theme    Theme
	keys     keyMap
	help     help.Model
	width    int
	height   int
	ready    bool
	showHelp bool
	modal    Modal

	// Cursor over the pipeline columns. cursorID keeps it on the same stage
	// across snapshots.
	cursorCol int
	cursorRow int
	cursorID  string

	// Log panel
	logViewport viewport.Model
	follow      bool

	flash    string
	flashErr bool
	flashAt  time.Time
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	return newModel(opts, nil)
}

func newModel(opts Options, notify func(selection.Key)) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = time.Second
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	cfg := config.Default()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	session := viewer.NewSession(ctx, viewer.Options{
		Fetcher:       opts.Logs,
		ApprovalStage: cfg.ApprovalStage,
		Policy:        cfg.RequirePolicy,
		Log: stagelog.Options{
			Interval: cfg.LogPollInterval,
			Notify:   notify,
		},
	})

	return Model{
		ctx:          ctx,
		store:        opts.Store,
		commander:    opts.Commander,
		deploymentID: opts.DeploymentID,
		prefsPath:    prefsPath,
		pollTick:     pollTick,
		session:      session,
		theme:        GetTheme(opts.ThemeName),
		keys:         DefaultKeyMap(),
		help:         help.New(),
		follow:       opts.Follow,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.logViewport = viewport.New(m.width, 1)
			m.ready = true
		}
		m.layout()
		m.refreshLog()
		return m, nil

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		cmds = append(cmds, tickCmd(m.pollTick))
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.applySnapshot(state.Snapshot(msg))
		return m, nil

	case logUpdatedMsg:
		if active, ok := m.session.Active(); ok && active.Same(msg.key) {
			m.refreshLog()
		}
		return m, nil

	case commandResultMsg:
		m.handleCommandResult(msg)
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

func (m Model) renderMain() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		"",
		m.renderPipeline(),
		m.renderStatusLine(),
		m.renderLogPanel(),
		m.renderFooter(),
	)
}

// layout sizes the log viewport to whatever the pipeline leaves free.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	used := 1 + 1 + lipgloss.Height(m.renderPipeline()) + 1 + 1 + 1
	m.logViewport.Width = m.width
	m.logViewport.Height = max(m.height-used, 3)
}

// applySnapshot loads a newer deployment into the session.
func (m *Model) applySnapshot(snap state.Snapshot) {
	m.snapshot = snap
	if !snap.HasDeployment || snap.Version == m.version {
		return
	}
	m.version = snap.Version
	m.session.Load(snap.Deployment)
	if c, ok := m.modal.(confirmModal); ok {
		if _, pending := c.flow.Pending(); !pending {
			m.modal = nil
			m.setFlash(fmt.Sprintf("%s %s no longer possible", c.flow.Action(), displayName(c.stage)), true)
		}
	}
	m.syncCursor()
	m.layout()
	m.refreshLog()
}

// syncCursor keeps the cursor on the stage it was on, or else moves it to
// the active stage.
func (m *Model) syncCursor() {
	g := m.session.Graph()
	if m.cursorID != "" {
		if col, row, ok := g.Position(m.cursorID); ok {
			m.cursorCol, m.cursorRow = col, row
			return
		}
	}
	if active, ok := m.session.Active(); ok {
		if col, row, ok := g.Position(active.StageID); ok {
			m.setCursor(col, row)
			return
		}
	}
	m.setCursor(0, 0)
}

func (m *Model) setCursor(col, row int) {
	g := m.session.Graph()
	if len(g.Layers) == 0 {
		m.cursorCol, m.cursorRow, m.cursorID = 0, 0, ""
		return
	}
	col = min(max(col, 0), len(g.Layers)-1)
	row = min(max(row, 0), len(g.Layers[col])-1)
	m.cursorCol, m.cursorRow = col, row
	if st, ok := g.At(col, row); ok {
		m.cursorID = st.ID
	}
}

func (m *Model) moveCursor(dCol, dRow int) {
	m.setCursor(m.cursorCol+dCol, m.cursorRow+dRow)
}

func (m Model) cursorStage() (pipeline.Stage, bool) {
	return m.session.Graph().At(m.cursorCol, m.cursorRow)
}

// skipTarget is the stage whose log is open, or the stage under the cursor
// when no log is open.
func (m Model) skipTarget() (pipeline.Stage, bool) {
	if st, ok := m.session.ActiveStage(); ok {
		return st, true
	}
	return m.cursorStage()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if m.modal != nil {
		modal, cmd, closed := m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		} else {
			m.modal = modal
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		m.refreshLog()

	case key.Matches(msg, m.keys.Left):
		m.moveCursor(-1, 0)
	case key.Matches(msg, m.keys.Right):
		m.moveCursor(1, 0)
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(0, -1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(0, 1)

	case key.Matches(msg, m.keys.Select):
		st, ok := m.cursorStage()
		if !ok {
			return m, nil
		}
		if err := m.session.Select(st.ID); err != nil {
			m.setFlash(fmt.Sprintf("select %s: %v", displayName(st), err), true)
			return m, nil
		}
		m.layout()
		m.refreshLog()

	case key.Matches(msg, m.keys.Approve):
		st, ok := m.cursorStage()
		m.requestCommand(m.session.Approval(), st, ok)

	case key.Matches(msg, m.keys.Skip):
		st, ok := m.skipTarget()
		m.requestCommand(m.session.Skip(), st, ok)

	case key.Matches(msg, m.keys.CloseLog):
		m.session.Close()
		m.layout()
		m.refreshLog()

	case key.Matches(msg, m.keys.ToggleFollow):
		m.follow = !m.follow
		if m.follow {
			m.logViewport.GotoBottom()
		}
		m.savePrefs()

	case key.Matches(msg, m.keys.PageUp):
		m.follow = false
		m.logViewport.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.logViewport.PageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		m.follow = false
		m.logViewport.HalfPageUp()
	case key.Matches(msg, m.keys.HalfPageDown):
		m.logViewport.HalfPageDown()
	case key.Matches(msg, m.keys.Top):
		m.follow = false
		m.logViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
	}

	return m, nil
}

// requestCommand moves flow to PENDING for st and opens the confirmation.
func (m *Model) requestCommand(flow *approval.Flow, st pipeline.Stage, ok bool) {
	if !ok {
		m.setFlash("no stage under the cursor", true)
		return
	}
	if err := flow.Request(st); err != nil {
		m.setFlash(fmt.Sprintf("cannot %s %s: %v", flow.Action(), displayName(st), err), true)
		return
	}
	m.modal = confirmModal{
		flow:         flow,
		stage:        st,
		deploymentID: m.session.Deployment().ID,
		send:         m.sendCommand,
	}
}

// sendCommand delivers a confirmed command off the event loop.
func (m Model) sendCommand(c approval.Command) tea.Cmd {
	ctx, commander := m.ctx, m.commander
	return func() tea.Msg {
		if commander == nil {
			return commandResultMsg{command: c, err: errReadOnly}
		}
		id, err := c.Send(ctx, commander)
		return commandResultMsg{command: c, commandID: id, err: err}
	}
}

func (m *Model) handleCommandResult(msg commandResultMsg) {
	action := msg.command.Action.String()
	metrics.StageCommands.WithLabelValues(action, metrics.Result(msg.err)).Inc()
	if msg.err != nil {
		slog.Warn("stage command failed", "action", action, "stage", msg.command.StageID, "error", msg.err)
		m.setFlash(msg.err.Error(), true)
		return
	}
	slog.Info("stage command accepted", "action", action, "stage", msg.command.StageID, "command_id", msg.commandID)
	m.setFlash(fmt.Sprintf("%s sent for %s (command %s)", action, msg.command.StageID, msg.commandID), false)
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
	m.flashAt = time.Now()
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, Follow: m.follow}); err != nil {
		slog.Debug("failed to save prefs", "error", err)
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

// logUpdatedMsg is sent by the log scheduler whenever the log of key changed.
type logUpdatedMsg struct {
	key selection.Key
}

type commandResultMsg struct {
	command   approval.Command
	commandID string
	err       error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	opts.Context = ctx

	var p *tea.Program
	m := newModel(opts, func(key selection.Key) {
		// The scheduler may call back from inside Update, so never block it.
		go p.Send(logUpdatedMsg{key: key})
	})
	defer m.session.Shutdown()

	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
