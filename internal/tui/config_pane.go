package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/agentscaffold/scaffold/internal/config"
)

// ConfigPaneModel is a read-only overlay showing the session config the
// running orchestrator was started with. The TUI never mutates the config
// of the session `scaffold watch` runs, so
// unlike the rest of the panes this one has no Update/Init: it is static
// for the lifetime of the TUI.
type ConfigPaneModel struct {
	cfg     *config.SessionConfig
	width   int
	height  int
	visible bool
}

// NewConfigPaneModel creates a new config pane.
func NewConfigPaneModel(cfg *config.SessionConfig) ConfigPaneModel {
	return ConfigPaneModel{cfg: cfg}
}

// View renders the config pane.
func (m ConfigPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("repo:            %s\n", m.cfg.RepoPath))
	b.WriteString(fmt.Sprintf("base branch:     %s\n", m.cfg.BaseBranch))
	b.WriteString(fmt.Sprintf("max tasks:       %d\n", m.cfg.MaxTasks))
	b.WriteString(fmt.Sprintf("max concurrent:  %d\n", m.cfg.MaxConcurrent))
	b.WriteString(fmt.Sprintf("max cost:        $%.2f\n", m.cfg.MaxCostUSD))
	b.WriteString(fmt.Sprintf("max time:        %.1fh\n", m.cfg.MaxTimeHours))
	b.WriteString(fmt.Sprintf("per-task timeout: %ds\n", m.cfg.PerTaskTimeoutSec))
	if len(m.cfg.Labels) > 0 {
		b.WriteString(fmt.Sprintf("labels:          %s\n", strings.Join(m.cfg.Labels, ", ")))
	}
	b.WriteString(fmt.Sprintf("dry run:         %v\n", m.cfg.DryRun))

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("Session Config (read-only)")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(b.String()))
}

// SetSize updates the dimensions of the config pane.
func (m *ConfigPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetVisible shows or hides the config pane.
func (m *ConfigPaneModel) SetVisible(v bool) {
	m.visible = v
}

// IsVisible returns whether the config pane is currently visible.
func (m ConfigPaneModel) IsVisible() bool {
	return m.visible
}
