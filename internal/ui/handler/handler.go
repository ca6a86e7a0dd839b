// Package handler applies transport events to the chat screen.
package handler

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/room-chat/internal/logger"
	"github.com/palemoky/room-chat/internal/ui/model"
)

// HandleEvent dispatches a transport event to the matching handler.
func HandleEvent(m model.Model, msg model.TransportEvent) tea.Cmd {
	switch ev := msg.(type) {
	case model.WSOpenMsg:
		return handleWSOpen(m)
	case model.WSCloseMsg:
		return handleWSClose(m)
	case model.WSErrorMsg:
		return handleWSError(m, ev)
	case model.WSFrameMsg:
		return handleWSFrame(m, ev.Data)
	case model.SSEOpenMsg:
		m.State().Logf("[SSE] subscribed")
		return nil
	case model.SSEErrorMsg:
		logger.LogError("sse: %v", ev.Err)
		m.State().Logf("[SSE] error")
		return nil
	case model.SSEDataMsg:
		return handleSSEData(m, ev.Data)
	case model.LogLineMsg:
		m.State().Logs.Append(ev.Line)
		return nil
	}
	return nil
}

func handleWSOpen(m model.Model) tea.Cmd {
	m.State().Logf("[WS] connected")
	m.ClearNotification(model.NotifyReconnecting)
	return nil
}

func handleWSClose(m model.Model) tea.Cmd {
	m.State().Logf("[WS] closed")
	m.SetJoinedRoom(0)
	if m.State().Authenticated() {
		m.SetNotification(model.NotifyReconnecting, "🔄 reconnecting...", false)
	}
	return nil
}

func handleWSError(m model.Model, msg model.WSErrorMsg) tea.Cmd {
	logger.LogError("websocket: %v", msg.Err)
	m.State().Logf("[WS] error")
	return nil
}
