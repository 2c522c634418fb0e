package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agentscaffold/scaffold/internal/config"
	"github.com/agentscaffold/scaffold/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneQueue PaneID = iota
	PaneBudget
)

// Model is the root Bubble Tea model for `scaffold watch`: a read-only
// view of the event stream of the session that `scaffold watch` runs.
type Model struct {
	queuePane   QueuePaneModel
	budgetPane  BudgetPaneModel
	configPane  ConfigPaneModel
	focusedPane PaneID
	eventSub    <-chan events.Event
	width       int
	height      int
	quitting    bool
	showConfig  bool
}

// New creates a new watch-mode TUI model, subscribing to every event on
// the bus via SubscribeAll.
func New(eventBus *events.EventBus, cfg *config.SessionConfig) Model {
	return Model{
		queuePane:   NewQueuePaneModel(),
		budgetPane:  NewBudgetPaneModel(cfg.MaxTasks, cfg.MaxCostUSD),
		configPane:  NewConfigPaneModel(cfg),
		focusedPane: PaneQueue,
		eventSub:    eventBus.SubscribeAll(256),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showConfig {
			switch msg.String() {
			case "c", "esc":
				m.showConfig = false
				m.configPane.SetVisible(false)
			}
			return m, nil
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case "c":
			m.showConfig = true
			m.configPane.SetVisible(true)

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % 2
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + 1) % 2
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneQueue
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneBudget
			m.updateFocusStates()

		default:
			switch m.focusedPane {
			case PaneQueue:
				var cmd tea.Cmd
				m.queuePane, cmd = m.queuePane.Update(msg)
				cmds = append(cmds, cmd)
			case PaneBudget:
				var cmd tea.Cmd
				m.budgetPane, cmd = m.budgetPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.configPane.SetSize(msg.Width, msg.Height)

	case events.TaskAcquiredEvent, events.TaskRejectedEvent, events.WorktreeCreatedEvent,
		events.HandlerStartedEvent, events.HandlerCompletedEvent, events.ResultProcessedEvent:
		var cmd tea.Cmd
		m.queuePane, cmd = m.queuePane.Update(msg)
		cmds = append(cmds, cmd)
		var cmd2 tea.Cmd
		m.budgetPane, cmd2 = m.budgetPane.Update(msg)
		cmds = append(cmds, cmd2)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.SessionLimitBreachEvent, events.EmergencyStopEvent:
		var cmd tea.Cmd
		m.budgetPane, cmd = m.budgetPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showConfig {
		return m.configPane.View()
	}

	leftWidth := (m.width * 60) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1

	leftPane := m.queuePane.View()
	rightPane := lipgloss.NewStyle().Width(rightWidth).Height(availableHeight).Render(m.budgetPane.View())

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)
	helpBar := HelpView()

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, helpBar)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 60) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1

	m.queuePane.SetSize(leftWidth, availableHeight)
	m.budgetPane.SetSize(rightWidth, availableHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.queuePane.SetFocused(m.focusedPane == PaneQueue)
	m.budgetPane.SetFocused(m.focusedPane == PaneBudget)
}
