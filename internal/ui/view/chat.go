// Package view provides UI rendering functions.
package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/palemoky/room-chat/internal/protocol"
	"github.com/palemoky/room-chat/internal/ui/common"
)

// SSEPlaceholder is shown while the SSE list is empty.
const SSEPlaceholder = "waiting for SSE..."

// RenderMessageBox renders the newest rows items of a message list inside
// a box of the given outer width. An empty list shows placeholder.
func RenderMessageBox(title string, items []protocol.MessageItem, rows, width int, placeholder string, style lipgloss.Style) string {
	inner := innerWidth(width, style)

	lines := make([]string, 0, len(items))
	for i := range items {
		lines = append(lines, common.Truncate(items[i].String(), inner))
	}
	lines = common.Tail(lines, rows)
	if len(lines) == 0 && placeholder != "" {
		lines = []string{common.MutedStyle.Render(placeholder)}
	}

	return renderBox(title, lines, rows, width, style)
}

// RenderLogBox renders log lines, newest first.
func RenderLogBox(lines []string, rows, width int) string {
	inner := innerWidth(width, common.LogBoxStyle)

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(out) == rows {
			break
		}
		out = append(out, common.Truncate(line, inner))
	}
	return renderBox("Logs", out, rows, width, common.LogBoxStyle)
}

func renderBox(title string, lines []string, rows, width int, style lipgloss.Style) string {
	var sb strings.Builder
	sb.WriteString(common.HeaderStyle.Render(title))
	for _, line := range lines {
		sb.WriteString("\n")
		sb.WriteString(line)
	}
	// 固定高度，避免界面抖动
	for i := len(lines); i < rows; i++ {
		sb.WriteString("\n")
	}
	return style.Width(innerWidth(width, style) + style.GetHorizontalPadding()).Render(sb.String())
}

func innerWidth(width int, style lipgloss.Style) int {
	w := width - style.GetHorizontalFrameSize()
	if w < 10 {
		w = 10
	}
	return w
}
