package handler

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/room-chat/internal/protocol"
	"github.com/palemoky/room-chat/internal/sound"
	"github.com/palemoky/room-chat/internal/ui/model"
)

// frameHandler 网关事件的界面副作用
type frameHandler func(m model.Model, ev *protocol.ChatEvent) tea.Cmd

// frameHandlers 事件处理器映射表
var frameHandlers = map[protocol.EventType]frameHandler{
	protocol.TypeJoined: handleJoined,
	protocol.TypeLeft:   handleLeft,
	protocol.TypeError:  handleGatewayError,
}

// handleWSFrame applies a raw frame to chat state, then runs the event's
// UI side effects.
func handleWSFrame(m model.Model, data []byte) tea.Cmd {
	res := m.State().ApplyWSFrame(data)
	if res.Event == nil {
		return nil
	}
	if handler, ok := frameHandlers[res.Event.Type]; ok {
		return handler(m, res.Event)
	}
	return nil
}

func handleJoined(m model.Model, ev *protocol.ChatEvent) tea.Cmd {
	if ev.RoomID != nil {
		m.SetJoinedRoom(*ev.RoomID)
	}
	return nil
}

func handleLeft(m model.Model, ev *protocol.ChatEvent) tea.Cmd {
	if ev.RoomID == nil || *ev.RoomID == m.JoinedRoom() {
		m.SetJoinedRoom(0)
	}
	return nil
}

func handleGatewayError(m model.Model, ev *protocol.ChatEvent) tea.Cmd {
	m.PlaySound(sound.Error)
	return m.ShowError(fmt.Sprintf("⚠️ %s", ev.Describe()))
}

// handleSSEData applies an SSE payload; a newly seen item raises a toast.
func handleSSEData(m model.Model, data []byte) tea.Cmd {
	item, added := m.State().ApplySSEData(data)
	if !added {
		return nil
	}
	m.PlaySound(sound.Message)
	return m.Toast("new message: " + item.Content)
}
