package model

import (
	"net/http"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/room-chat/internal/config"
	"github.com/palemoky/room-chat/internal/protocol"
	"github.com/palemoky/room-chat/internal/testutil"
	"github.com/palemoky/room-chat/internal/transport"
)

type sseSub struct {
	roomID, userID int64
	ch             *testutil.SimpleChannel
}

type harness struct {
	m    *ChatModel
	gw   *testutil.FakeGateway
	ws   *testutil.SimpleChannel
	sses []sseSub
	seen []TransportEvent
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	gw := testutil.NewFakeGateway()
	t.Cleanup(gw.Close)

	cfg := config.Default()
	cfg.Server.Origin = gw.URL()
	cfg.Sound.Muted = true
	cfg.Sound.Dir = t.TempDir()

	h := &harness{gw: gw, ws: testutil.NewSimpleChannel()}
	h.m = NewChatModel(cfg, Options{
		ClientID: "test-client",
		NewWS:    func() (WSConn, error) { return h.ws, nil },
		NewSSE: func(roomID, userID int64) transport.RealtimeChannel {
			ch := testutil.NewSimpleChannel()
			h.sses = append(h.sses, sseSub{roomID: roomID, userID: userID, ch: ch})
			return ch
		},
	})
	h.m.SetEventHandler(func(m Model, ev TransportEvent) tea.Cmd {
		h.seen = append(h.seen, ev)
		if line, ok := ev.(LogLineMsg); ok {
			m.State().Logs.Append(line.Line)
		}
		return nil
	})
	t.Cleanup(h.m.Shutdown)
	return h
}

// drain feeds every queued transport event to Update.
func (h *harness) drain() {
	for {
		select {
		case msg := <-h.m.events:
			h.m.Update(msg)
		default:
			return
		}
	}
}

func (h *harness) login(t *testing.T, username string) {
	t.Helper()
	h.m.Input(FieldUsername).SetValue(username)
	msg := h.m.Login()()
	require.IsType(t, LoginSucceededMsg{}, msg)
	h.m.Update(msg)
}

func (h *harness) lastSSE() sseSub {
	return h.sses[len(h.sses)-1]
}

func TestField_Cycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from Field
		next Field
		prev Field
	}{
		{"username", FieldUsername, FieldRoom, FieldMessage},
		{"room", FieldRoom, FieldToUser, FieldUsername},
		{"message wraps", FieldMessage, FieldUsername, FieldToUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.next, tt.from.Next())
			assert.Equal(t, tt.prev, tt.from.Prev())
		})
	}
}

func TestNewChatModel_Defaults(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	assert.Equal(t, FieldUsername, h.m.Focus())
	assert.True(t, h.m.Input(FieldUsername).Focused())
	assert.Equal(t, "1", h.m.Input(FieldRoom).Value())
	assert.Equal(t, "2", h.m.Input(FieldToUser).Value())
	assert.Equal(t, transport.StateIdle, h.m.WSState())
	assert.Equal(t, transport.StateIdle, h.m.SSEState())
	assert.False(t, h.m.State().Authenticated())
}

func TestChatModel_LoginStartsSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login(t, "alice")

	state := h.m.State()
	assert.Equal(t, int64(1), state.UserID)
	assert.Equal(t, "alice", state.Username)
	assert.Equal(t, "[AUTH] login ok userId=1", state.Logs.Last())

	// WebSocket 未打开，加入被推迟
	assert.Equal(t, transport.StateConnecting, h.m.WSState())
	assert.Empty(t, h.ws.Sent())
	require.Len(t, h.sses, 1)
	assert.Equal(t, int64(1), h.sses[0].roomID)
	assert.Equal(t, int64(1), h.sses[0].userID)

	h.ws.Open()
	h.drain()

	assert.Equal(t, []string{`{"type":"join_room","roomId":1}`}, h.ws.Sent())
	assert.Equal(t, "[WS] auto join_room 1", state.Logs.Last())
	assert.Contains(t, h.seen, TransportEvent(WSOpenMsg{}))
	assert.Contains(t, h.gw.ClientIDs(), "test-client")
}

func TestChatModel_SameUserLoginDoesNotResubscribe(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login(t, "alice")
	h.login(t, "alice")

	assert.Len(t, h.sses, 1)
}

func TestChatModel_LoginFailure(t *testing.T) {
	t.Parallel()

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.gw.SetLoginStatus(http.StatusUnauthorized)
		h.m.Input(FieldUsername).SetValue("alice")

		msg := h.m.Login()()
		require.IsType(t, LoginFailedMsg{}, msg)
		h.m.Update(msg)

		assert.Equal(t, "[AUTH] login failed", h.m.State().Logs.Last())
		assert.False(t, h.m.State().Authenticated())
		assert.Empty(t, h.sses)
	})

	t.Run("network error", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.gw.Close()
		h.m.Input(FieldUsername).SetValue("alice")

		h.m.Update(h.m.Login()())

		assert.Equal(t, "[AUTH] login error", h.m.State().Logs.Last())
		assert.False(t, h.m.State().Authenticated())
	})
}

func TestChatModel_History(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	history := []protocol.MessageItem{
		{ID: 1, RoomID: 1, SenderID: 2, Content: "old", Seq: 1},
		{ID: 2, RoomID: 1, SenderID: 1, Content: "older", Seq: 2},
	}
	h.gw.SetHistory(1, history)
	h.login(t, "alice")

	msg := h.m.loadHistory()()
	require.IsType(t, HistoryLoadedMsg{}, msg)
	h.m.Update(msg)

	assert.Equal(t, history, h.m.State().Messages)
}

func TestChatModel_StaleHistoryDiscarded(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login(t, "alice")

	h.m.Update(HistoryLoadedMsg{RoomID: 9, UserID: 1, Items: []protocol.MessageItem{{ID: 1, RoomID: 9}}})
	h.m.Update(HistoryLoadedMsg{RoomID: 1, UserID: 5, Items: []protocol.MessageItem{{ID: 1, RoomID: 1}}})
	h.m.Update(HistoryFailedMsg{RoomID: 9, UserID: 1})

	assert.Empty(t, h.m.State().Messages)
	assert.NotEqual(t, "[HISTORY] load fail", h.m.State().Logs.Last())
}

func TestChatModel_HistoryFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login(t, "alice")
	h.m.State().ReplaceHistory([]protocol.MessageItem{{ID: 3, RoomID: 1}})
	h.gw.SetHistoryStatus(http.StatusInternalServerError)

	msg := h.m.loadHistory()()
	require.IsType(t, HistoryFailedMsg{}, msg)
	h.m.Update(msg)

	assert.Equal(t, "[HISTORY] load fail", h.m.State().Logs.Last())
	assert.Len(t, h.m.State().Messages, 1)
}

func TestChatModel_ApplyRoom(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login(t, "alice")
	h.ws.Open()
	h.drain()
	first := h.lastSSE()

	h.m.Input(FieldRoom).SetValue("7")
	cmd := h.m.ApplyRoom()

	assert.NotNil(t, cmd)
	assert.Equal(t, int64(7), h.m.State().RoomID)
	assert.Equal(t, transport.StateClosed, first.ch.State())
	require.Len(t, h.sses, 2)
	assert.Equal(t, int64(7), h.lastSSE().roomID)
	assert.Equal(t, int64(1), h.lastSSE().userID)
	assert.Equal(t, `{"type":"join_room","roomId":7}`, h.ws.Sent()[len(h.ws.Sent())-1])
	assert.Equal(t, "[WS] auto join_room 7", h.m.State().Logs.Last())
}

func TestChatModel_ApplyRoomInvalid(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.m.Input(FieldRoom).SetValue("abc")

	assert.Nil(t, h.m.ApplyRoom())
	assert.Equal(t, int64(1), h.m.State().RoomID)
	assert.Equal(t, "1", h.m.Input(FieldRoom).Value())
	assert.Equal(t, `[APP] invalid roomId "abc"`, h.m.State().Logs.Last())
}

func TestChatModel_ApplyRoomBeforeLogin(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.m.Input(FieldRoom).SetValue("3")

	assert.Nil(t, h.m.ApplyRoom())
	assert.Equal(t, int64(3), h.m.State().RoomID)
	assert.Empty(t, h.sses)
}

func TestChatModel_ApplyToUser(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.m.Input(FieldToUser).SetValue("9")
	h.m.ApplyToUser()
	assert.Equal(t, int64(9), h.m.State().ToUserID)

	h.m.Input(FieldToUser).SetValue("x")
	h.m.ApplyToUser()
	assert.Equal(t, int64(9), h.m.State().ToUserID)
	assert.Equal(t, "9", h.m.Input(FieldToUser).Value())
}

func TestChatModel_StaleSSEEventsDropped(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login(t, "alice")
	h.m.Input(FieldRoom).SetValue("7")
	h.m.ApplyRoom()
	h.seen = nil

	h.m.Update(SSEDataMsg{Gen: 1, Data: []byte(`{}`)})
	h.m.Update(SSEOpenMsg{Gen: 1})
	assert.Empty(t, h.seen)

	h.m.Update(SSEOpenMsg{Gen: 2})
	assert.Equal(t, []TransportEvent{SSEOpenMsg{Gen: 2}}, h.seen)
}

func TestChatModel_SSEEventsCarryGeneration(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login(t, "alice")
	sub := h.lastSSE()

	sub.ch.Open()
	sub.ch.Deliver(`{"id":1}`)
	h.drain()

	assert.Equal(t, []TransportEvent{
		SSEOpenMsg{Gen: 1},
		SSEDataMsg{Gen: 1, Data: []byte(`{"id":1}`)},
	}, h.seen)
}

func TestChatModel_Publish(t *testing.T) {
	t.Parallel()

	t.Run("login first", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.m.Input(FieldMessage).SetValue("hi")

		h.m.Publish()

		assert.Equal(t, "[APP] login first", h.m.State().Logs.Last())
		assert.Equal(t, "hi", h.m.Input(FieldMessage).Value())
	})

	t.Run("socket not open keeps draft", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.login(t, "alice")
		h.m.Input(FieldMessage).SetValue("hi")

		h.m.Publish()

		assert.Equal(t, "[WS] send failed: connection not open", h.m.State().Logs.Last())
		assert.Equal(t, "hi", h.m.Input(FieldMessage).Value())
		assert.Equal(t, "hi", h.m.State().Draft)
	})

	t.Run("sends and clears", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.login(t, "alice")
		h.ws.Open()
		h.m.Input(FieldMessage).SetValue("hello")

		h.m.Publish()

		sent := h.ws.Sent()
		assert.Equal(t, `{"type":"publish","roomId":1,"senderId":1,"toUserId":2,"content":"hello"}`, sent[len(sent)-1])
		assert.Empty(t, h.m.Input(FieldMessage).Value())
		assert.Empty(t, h.m.State().Draft)
	})

	t.Run("empty draft ignored", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.login(t, "alice")
		h.ws.Open()
		before := len(h.ws.Sent())

		h.m.Publish()

		assert.Len(t, h.ws.Sent(), before)
	})
}

func TestChatModel_JoinNow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.m.JoinNow()
	assert.Equal(t, "[APP] login first", h.m.State().Logs.Last())

	h.login(t, "alice")
	h.m.JoinNow()
	assert.Equal(t, "[WS] send failed: connection not open", h.m.State().Logs.Last())

	h.ws.Open()
	h.drain()
	h.m.JoinNow()
	assert.Equal(t, "[WS] join_room 1", h.m.State().Logs.Last())
}

func TestChatModel_Toast(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	assert.NotNil(t, h.m.Toast("new message: a"))
	assert.NotNil(t, h.m.Toast("new message: b"))

	h.m.Update(ClearToastMsg{Seq: 1})
	require.NotNil(t, h.m.GetCurrentNotification())
	assert.Equal(t, "new message: b", h.m.GetCurrentNotification().Message)

	h.m.Update(ClearToastMsg{Seq: 2})
	assert.Nil(t, h.m.GetCurrentNotification())
}

func TestChatModel_NotificationPriority(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.m.SetNotification(NotifyReconnecting, "reconnecting", false)
	assert.NotNil(t, h.m.ShowError("boom"))

	assert.Equal(t, NotifyError, h.m.GetCurrentNotification().Type)

	h.m.Update(ClearSystemNotificationMsg{Seq: 1})
	assert.Equal(t, NotifyReconnecting, h.m.GetCurrentNotification().Type)
}

func TestChatModel_ShowError_NewerErrorKeepsDeadline(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	assert.NotNil(t, h.m.ShowError("first"))
	assert.NotNil(t, h.m.ShowError("second"))

	h.m.Update(ClearSystemNotificationMsg{Seq: 1})
	require.NotNil(t, h.m.GetCurrentNotification())
	assert.Equal(t, "second", h.m.GetCurrentNotification().Message)

	h.m.Update(ClearSystemNotificationMsg{Seq: 2})
	assert.Nil(t, h.m.GetCurrentNotification())
}

func TestChatModel_Shutdown(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.login(t, "alice")
	sub := h.lastSSE()

	h.m.Shutdown()
	h.m.Shutdown()

	assert.Equal(t, transport.StateClosed, h.ws.State())
	assert.Equal(t, transport.StateClosed, sub.ch.State())

	// 关闭后的结果一律丢弃
	h.m.Update(LoginSucceededMsg{Username: "bob", UserID: 2})
	h.m.Update(HistoryLoadedMsg{RoomID: 1, UserID: 1, Items: []protocol.MessageItem{{ID: 1, RoomID: 1}}})
	h.m.Update(WSOpenMsg{})

	assert.Equal(t, int64(1), h.m.State().UserID)
	assert.Empty(t, h.m.State().Messages)
	assert.Empty(t, h.seen)
}

func TestChatModel_View(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	assert.Equal(t, "Loading...", h.m.View())

	h.m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	assert.Equal(t, 100, h.m.Width())
	assert.Equal(t, 40, h.m.Height())
	assert.Contains(t, h.m.View(), "View renderer not initialized")

	h.m.SetViewRenderer(func(Model) string { return "chat" })
	assert.Contains(t, h.m.View(), "chat")
}
