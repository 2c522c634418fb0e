package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/agentscaffold/scaffold/internal/events"
)

// TaskState tracks one task's progress through acquisition, handler
// execution, and result processing, as observed on the event bus.
type TaskState struct {
	TaskID    string
	Route     string
	Status    string // "acquired", "rejected", "running", "completed", "failed"
	Log       []string
	StartTime time.Time
	CostUSD   float64
}

// QueuePaneModel is the task list and per-task log viewport pane.
type QueuePaneModel struct {
	tasks       map[string]*TaskState
	order       []string
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewQueuePaneModel creates a new queue pane model.
func NewQueuePaneModel() QueuePaneModel {
	return QueuePaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the queue pane.
func (m QueuePaneModel) Update(msg tea.Msg) (QueuePaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskAcquiredEvent:
		m.upsert(msg.ID).Route = msg.Route
		m.upsert(msg.ID).Status = "acquired"
		m.appendLog(msg.ID, fmt.Sprintf("acquired via %s", msg.Route))

	case events.TaskRejectedEvent:
		m.upsert(msg.ID).Status = "rejected"
		m.appendLog(msg.ID, fmt.Sprintf("rejected: %s", msg.Reason))

	case events.WorktreeCreatedEvent:
		m.appendLog(msg.ID, fmt.Sprintf("worktree created at %s (%s)", msg.WorktreePath, msg.Branch))

	case events.HandlerStartedEvent:
		m.upsert(msg.ID).Status = "running"
		m.upsert(msg.ID).StartTime = msg.Timestamp
		m.appendLog(msg.ID, fmt.Sprintf("handler started (%s)", msg.Route))

	case events.HandlerCompletedEvent:
		t := m.upsert(msg.ID)
		t.CostUSD = msg.CostUSD
		if msg.Success {
			t.Status = "completed"
		} else {
			t.Status = "failed"
		}
		m.appendLog(msg.ID, fmt.Sprintf("handler finished in %.1fs, cost $%.2f, success=%v", msg.DurationSec, msg.CostUSD, msg.Success))

	case events.ResultProcessedEvent:
		m.appendLog(msg.ID, fmt.Sprintf("result processed: %s %s", msg.Status, msg.PRURL))
	}

	return m, cmd
}

func (m *QueuePaneModel) upsert(taskID string) *TaskState {
	t, ok := m.tasks[taskID]
	if !ok {
		t = &TaskState{TaskID: taskID, Status: "pending"}
		m.tasks[taskID] = t
		m.order = append(m.order, taskID)
		if len(m.order) == 1 {
			m.selectedIdx = 0
		}
	}
	return t
}

func (m *QueuePaneModel) appendLog(taskID, line string) {
	t := m.upsert(taskID)
	t.Log = append(t.Log, line)
	if m.selectedTaskID() == taskID {
		m.updateViewportContent()
	}
}

// View renders the queue pane.
func (m QueuePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 28
	viewportWidth := m.width - listWidth - 4

	listContent := m.renderList(listWidth)
	viewportContent := m.viewport.View()

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		listContent,
		lipgloss.NewStyle().Width(viewportWidth).Height(m.height-2).Render(viewportContent),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.Width(m.width - 2).Height(m.height - 2).Render(content)
}

func (m QueuePaneModel) renderList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting for tasks..."))
	} else {
		for i, taskID := range m.order {
			t := m.tasks[taskID]
			icon := m.statusIcon(t.Status)
			name := taskID
			if len(name) > width-6 {
				name = name[:width-9] + "..."
			}
			line := fmt.Sprintf("%s %s", icon, name)
			if i == m.selectedIdx {
				line = lipgloss.NewStyle().
					Background(lipgloss.Color("62")).
					Foreground(lipgloss.Color("0")).
					Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().Width(width).Height(m.height - 2).Render(b.String())
}

func (m QueuePaneModel) statusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed", "rejected":
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

func (m QueuePaneModel) selectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

func (m *QueuePaneModel) updateViewportContent() {
	taskID := m.selectedTaskID()
	t, ok := m.tasks[taskID]
	if !ok {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}
	m.viewport.SetContent(strings.Join(t.Log, "\n"))
	m.viewport.GotoBottom()
}

func (m *QueuePaneModel) resizeViewport() {
	listWidth := 28
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4
	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *QueuePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *QueuePaneModel) SetFocused(focused bool) {
	m.focused = focused
}
