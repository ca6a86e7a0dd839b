package model

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/room-chat/internal/apperrors"
	"github.com/palemoky/room-chat/internal/client"
	"github.com/palemoky/room-chat/internal/logger"
)

// errorNotifyDuration 错误提示显示时长
const errorNotifyDuration = 3 * time.Second

// Login submits the username field to the login endpoint.
func (m *ChatModel) Login() tea.Cmd {
	username := strings.TrimSpace(m.inputs[FieldUsername].Value())
	ctx, api := m.ctx, m.api
	return func() tea.Msg {
		userID, err := api.Login(ctx, username)
		if err != nil {
			return LoginFailedMsg{Username: username, Err: err}
		}
		return LoginSucceededMsg{Username: username, UserID: userID}
	}
}

func (m *ChatModel) handleLoginSucceeded(msg LoginSucceededMsg) []tea.Cmd {
	if m.ctx.Err() != nil {
		return nil
	}
	changed := m.state.UserID != msg.UserID
	m.state.Username = msg.Username
	m.state.ApplyLogin(msg.UserID)
	logger.LogInfo("login ok user=%s id=%d", msg.Username, msg.UserID)
	if !changed {
		return nil
	}
	return m.refreshSession()
}

func (m *ChatModel) handleLoginFailed(msg LoginFailedMsg) {
	if m.ctx.Err() != nil {
		return
	}
	logger.LogError("login %q: %v", msg.Username, msg.Err)
	if apperrors.Is(msg.Err, apperrors.ErrLoginRejected) {
		m.state.Logf("[AUTH] login failed")
		return
	}
	m.state.Logf("[AUTH] login error")
}

// ApplyRoom switches to the room typed in the roomId field.
func (m *ChatModel) ApplyRoom() tea.Cmd {
	input := &m.inputs[FieldRoom]
	roomID, err := strconv.ParseInt(strings.TrimSpace(input.Value()), 10, 64)
	if err != nil {
		m.state.Logf("[APP] invalid roomId %q", input.Value())
		input.SetValue(strconv.FormatInt(m.state.RoomID, 10))
		return nil
	}
	if !m.state.SetRoom(roomID) || !m.state.Authenticated() {
		return nil
	}
	m.joinedRoom = 0
	return tea.Batch(m.refreshSession()...)
}

// ApplyToUser stores the toUserId field used by publish.
func (m *ChatModel) ApplyToUser() {
	input := &m.inputs[FieldToUser]
	toUserID, err := strconv.ParseInt(strings.TrimSpace(input.Value()), 10, 64)
	if err != nil {
		m.state.Logf("[APP] invalid toUserId %q", input.Value())
		input.SetValue(strconv.FormatInt(m.state.ToUserID, 10))
		return
	}
	m.state.ToUserID = toUserID
}

// Publish sends the message field as a publish frame. The draft is kept
// when the send fails.
func (m *ChatModel) Publish() {
	m.state.Draft = m.inputs[FieldMessage].Value()
	frame, err := m.state.PreparePublish()
	if err != nil {
		return
	}
	if m.ws == nil {
		m.state.Logf("[WS] send failed: %v", apperrors.ErrNotConnected)
		return
	}
	if err := m.ws.Send(frame); err != nil {
		m.state.Logf("[WS] send failed: %v", err)
		return
	}
	m.state.Draft = ""
	m.inputs[FieldMessage].Reset()
}

// JoinNow sends join_room for the current room right away.
func (m *ChatModel) JoinNow() {
	if m.membership == nil {
		m.state.Logf("[APP] login first")
		return
	}
	if err := m.membership.JoinNow(m.state.RoomID); err != nil {
		m.state.Logf("[WS] send failed: %v", err)
		return
	}
	m.state.Logf("[WS] join_room %d", m.state.RoomID)
}

// Quit shuts the session down and ends the program.
func (m *ChatModel) Quit() tea.Cmd {
	m.Shutdown()
	return tea.Quit
}

// Shutdown cancels in-flight requests and closes both channels. Safe to
// call more than once.
func (m *ChatModel) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.cancel()
		if m.membership != nil {
			m.membership.Stop()
		}
		if m.ws != nil {
			_ = m.ws.Close()
		}
		m.closeSSE()
		m.soundManager.Close()
	})
}

// refreshSession re-runs the per-room effects for the current room and
// user: WebSocket membership, SSE subscription and history.
func (m *ChatModel) refreshSession() []tea.Cmd {
	m.ensureWS()
	m.ensureMembership()
	m.resubscribeSSE()
	return []tea.Cmd{m.loadHistory()}
}

func (m *ChatModel) ensureWS() {
	if m.ws != nil {
		return
	}
	ws, err := m.newWS()
	if err != nil {
		m.state.Logf("[WS] error")
		logger.LogError("websocket: %v", err)
		return
	}

	ctx := m.ctx
	ws.OnOpen(func() { m.post(ctx, WSOpenMsg{}) })
	ws.OnClose(func() { m.post(ctx, WSCloseMsg{}) })
	ws.OnError(func(err error) { m.post(ctx, WSErrorMsg{Err: err}) })
	ws.OnMessage(func(data []byte) { m.post(ctx, WSFrameMsg{Data: data}) })

	m.ws = ws
	m.membership = client.NewMembership(ws, m.postLog)
	if err := ws.Connect(ctx); err != nil {
		logger.LogError("websocket connect: %v", err)
	}
}

func (m *ChatModel) ensureMembership() {
	if m.membership == nil {
		return
	}
	roomID := m.state.RoomID
	joined, err := m.membership.Ensure(roomID)
	if !joined {
		return
	}
	if err != nil {
		m.state.Logf("[WS] join_room %d failed: %v", roomID, err)
		return
	}
	m.state.Logf("[WS] auto join_room %d", roomID)
}

// resubscribeSSE replaces the SSE subscription with one for the current
// room and user. Events of the old subscription are dropped by generation.
func (m *ChatModel) resubscribeSSE() {
	m.closeSSE()
	m.sseGen++

	gen := m.sseGen
	ctx, cancel := context.WithCancel(m.ctx)
	sse := m.newSSE(m.state.RoomID, m.state.UserID)
	sse.OnOpen(func() { m.post(ctx, SSEOpenMsg{Gen: gen}) })
	sse.OnError(func(err error) { m.post(ctx, SSEErrorMsg{Gen: gen, Err: err}) })
	sse.OnMessage(func(data []byte) { m.post(ctx, SSEDataMsg{Gen: gen, Data: data}) })

	m.sse = sse
	m.sseCancel = cancel
	if err := sse.Connect(ctx); err != nil {
		logger.LogError("sse connect: %v", err)
	}
}

func (m *ChatModel) closeSSE() {
	if m.sseCancel != nil {
		m.sseCancel()
		m.sseCancel = nil
	}
	if m.sse != nil {
		_ = m.sse.Close()
	}
}

func (m *ChatModel) loadHistory() tea.Cmd {
	ctx, api := m.ctx, m.api
	roomID, userID, limit := m.state.RoomID, m.state.UserID, m.cfg.Chat.HistoryLimit
	return func() tea.Msg {
		items, err := api.History(ctx, roomID, limit)
		if err != nil {
			return HistoryFailedMsg{RoomID: roomID, UserID: userID, Err: err}
		}
		return HistoryLoadedMsg{RoomID: roomID, UserID: userID, Items: items}
	}
}

// isCurrent reports whether a response for roomID/userID still applies.
func (m *ChatModel) isCurrent(roomID, userID int64) bool {
	return m.ctx.Err() == nil && roomID == m.state.RoomID && userID == m.state.UserID
}

func (m *ChatModel) handleHistoryLoaded(msg HistoryLoadedMsg) {
	if !m.isCurrent(msg.RoomID, msg.UserID) {
		return
	}
	m.state.ReplaceHistory(msg.Items)
}

func (m *ChatModel) handleHistoryFailed(msg HistoryFailedMsg) {
	if !m.isCurrent(msg.RoomID, msg.UserID) {
		return
	}
	logger.LogError("history room=%d: %v", msg.RoomID, msg.Err)
	m.state.Logf("[HISTORY] load fail")
}

// postLog is handed to membership, whose deferred joins run on the
// WebSocket goroutine.
func (m *ChatModel) postLog(format string, args ...any) {
	m.post(m.ctx, LogLineMsg{Line: fmt.Sprintf(format, args...)})
}

// Toast shows a transient notification and schedules its removal.
func (m *ChatModel) Toast(message string) tea.Cmd {
	m.toastSeq++
	seq := m.toastSeq
	m.SetNotification(NotifyToast, message, true)
	return tea.Tick(m.cfg.Chat.ToastDuration(), func(time.Time) tea.Msg {
		return ClearToastMsg{Seq: seq}
	})
}

// ShowError shows an error notification and schedules its removal. A newer
// error keeps its own deadline.
func (m *ChatModel) ShowError(message string) tea.Cmd {
	m.errorSeq++
	seq := m.errorSeq
	m.SetNotification(NotifyError, message, true)
	return tea.Tick(errorNotifyDuration, func(time.Time) tea.Msg {
		return ClearSystemNotificationMsg{Seq: seq}
	})
}
