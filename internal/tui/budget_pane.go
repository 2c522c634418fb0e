package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agentscaffold/scaffold/internal/events"
)

// BudgetPaneModel shows session-wide progress: tasks completed/failed
// against max_tasks, and cost spent against max_cost.
type BudgetPaneModel struct {
	maxTasks      int
	maxCostUSD    float64
	completed     int
	failed        int
	rejected      int
	worktrees     int
	costUSD       float64
	limitBreached string
	width         int
	height        int
	focused       bool
}

// NewBudgetPaneModel creates a new budget pane model seeded with the
// session's configured caps.
func NewBudgetPaneModel(maxTasks int, maxCostUSD float64) BudgetPaneModel {
	return BudgetPaneModel{maxTasks: maxTasks, maxCostUSD: maxCostUSD}
}

// Update handles messages for the budget pane.
func (m BudgetPaneModel) Update(msg tea.Msg) (BudgetPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.TaskRejectedEvent:
		m.rejected++

	case events.WorktreeCreatedEvent:
		m.worktrees++

	case events.HandlerCompletedEvent:
		m.costUSD += msg.CostUSD
		if msg.Success {
			m.completed++
		} else {
			m.failed++
		}

	case events.SessionLimitBreachEvent:
		m.limitBreached = msg.Reason
	}

	return m, nil
}

// View renders the budget pane.
func (m BudgetPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Session Budget")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	done := m.completed + m.failed
	b.WriteString(fmt.Sprintf("Tasks:     %s / %d\n", StyleStatusComplete.Render(fmt.Sprintf("%d", done)), m.maxTasks))
	b.WriteString(fmt.Sprintf("Completed: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", m.completed))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("Rejected:  %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.rejected))))
	b.WriteString(fmt.Sprintf("Worktrees: %d\n", m.worktrees))
	b.WriteString(fmt.Sprintf("Cost:      $%.2f / $%.2f\n", m.costUSD, m.maxCostUSD))

	b.WriteString("\n")

	if m.maxTasks > 0 {
		barWidth := min(m.width-4, 40)
		completedWidth := (m.completed * barWidth) / m.maxTasks
		failedWidth := (m.failed * barWidth) / m.maxTasks
		pendingWidth := barWidth - completedWidth - failedWidth
		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))
		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, done, m.maxTasks))
	}

	if m.limitBreached != "" {
		b.WriteString("\n")
		b.WriteString(StyleStatusFailed.Render(fmt.Sprintf("LIMIT BREACHED: %s", m.limitBreached)))
		b.WriteString("\n")
	}

	content := b.String()

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.Width(m.width - 2).Height(m.height - 2).Render(content)
}

// SetSize updates the pane dimensions.
func (m *BudgetPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *BudgetPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
