package view

import (
	"fmt"
	"strings"

	"github.com/palemoky/room-chat/internal/transport"
	"github.com/palemoky/room-chat/internal/ui/common"
	"github.com/palemoky/room-chat/internal/ui/model"
)

// Fixed layout rows: title, form, status, notification, help and spacing.
const (
	chromeRows   = 11
	boxFrameRows = 3 // border + title
	minBoxRows   = 1
)

// CreateViewRenderer creates a view renderer function that can be injected into ChatModel.
func CreateViewRenderer() func(model.Model) string {
	return ChatView
}

// ChatView renders the chat screen.
func ChatView(m model.Model) string {
	width := m.Width() - common.DocStyle.GetHorizontalFrameSize()
	height := m.Height() - common.DocStyle.GetVerticalFrameSize()
	state := m.State()

	msgRows, sseRows, logRows := PanelRows(height)

	var sb strings.Builder
	sb.WriteString(common.TitleStyle("💬 Room Chat"))
	sb.WriteString("\n\n")
	sb.WriteString(renderForm(m))
	sb.WriteString("\n\n")
	sb.WriteString(RenderStatus(m))
	sb.WriteString("\n")
	sb.WriteString(RenderNotification(m.GetCurrentNotification(), width))
	sb.WriteString("\n")
	sb.WriteString(RenderMessageBox("Messages", state.Messages, msgRows, width, "", common.BoxStyle))
	sb.WriteString("\n")
	sb.WriteString(RenderMessageBox("SSE", state.SSEMessages, sseRows, width, SSEPlaceholder, common.SSEBoxStyle))
	sb.WriteString("\n")
	sb.WriteString(RenderLogBox(state.Logs.Newest(logRows), logRows, width))
	sb.WriteString("\n")
	sb.WriteString(common.MutedStyle.Render("tab/shift+tab: field · enter: submit · ctrl+j: join · esc: quit"))

	return sb.String()
}

// PanelRows splits the rows left after the fixed chrome between the
// messages, SSE and log panels.
func PanelRows(height int) (messages, sse, logs int) {
	avail := height - chromeRows - 3*boxFrameRows
	if avail < 3*minBoxRows {
		return minBoxRows, minBoxRows, minBoxRows
	}
	messages = max(avail*2/5, minBoxRows)
	sse = max(avail/4, minBoxRows)
	logs = avail - messages - sse
	return messages, sse, logs
}

func renderForm(m model.Model) string {
	rows := make([]string, 0, len(model.Fields))
	for _, f := range model.Fields {
		marker := common.BlankMarker
		if f == m.Focus() {
			marker = common.FocusMarker
		}
		rows = append(rows, marker+" "+common.LabelStyle.Render(f.String())+m.Input(f).View())
	}
	return strings.Join(rows, "\n")
}

// RenderStatus renders the user id, room and connection states.
func RenderStatus(m model.Model) string {
	state := m.State()

	user := "-"
	if state.Authenticated() {
		user = fmt.Sprintf("%d", state.UserID)
		if state.Username != "" {
			user += " (" + state.Username + ")"
		}
	}

	room := fmt.Sprintf("room %d", state.RoomID)
	if joined := m.JoinedRoom(); joined != 0 {
		room += fmt.Sprintf(" (joined %d)", joined)
	}

	parts := []string{
		"userId: " + user,
		room,
		fmt.Sprintf("to %d", state.ToUserID),
		"ws: " + renderConnState(m.WSState()),
		"sse: " + renderConnState(m.SSEState()),
	}
	return strings.Join(parts, common.MutedStyle.Render(" │ "))
}

func renderConnState(s transport.ConnState) string {
	switch s {
	case transport.StateOpen:
		return common.SuccessStyle.Render(s.String())
	case transport.StateConnecting, transport.StateReconnecting:
		return common.WarnStyle.Render(s.String())
	case transport.StateClosed:
		return common.ErrorStyle.Render(s.String())
	default:
		return common.MutedStyle.Render(s.String())
	}
}

// RenderNotification renders the current notification as one row of at
// most width cells.
func RenderNotification(n *model.SystemNotification, width int) string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case model.NotifyError:
		return common.ErrorStyle.Render(common.Truncate(n.Message, width))
	case model.NotifyToast:
		return common.SuccessStyle.Render(common.Truncate("✅ "+n.Message, width))
	default:
		return common.WarnStyle.Render(common.Truncate(n.Message, width))
	}
}
