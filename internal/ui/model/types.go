// Package model defines the core types and interfaces for the UI.
package model

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/palemoky/room-chat/internal/client"
	"github.com/palemoky/room-chat/internal/protocol"
	"github.com/palemoky/room-chat/internal/transport"
)

// Field identifies a form input.
type Field int

const (
	FieldUsername Field = iota
	FieldRoom
	FieldToUser
	FieldMessage
	fieldCount
)

// Fields lists the form inputs in focus order.
var Fields = []Field{FieldUsername, FieldRoom, FieldToUser, FieldMessage}

func (f Field) String() string {
	switch f {
	case FieldUsername:
		return "username"
	case FieldRoom:
		return "roomId"
	case FieldToUser:
		return "toUserId"
	case FieldMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Next returns the field after f, wrapping around.
func (f Field) Next() Field { return (f + 1) % fieldCount }

// Prev returns the field before f, wrapping around.
func (f Field) Prev() Field { return (f + fieldCount - 1) % fieldCount }

// NotificationType represents types of system notifications.
type NotificationType int

const (
	NotifyError        NotificationType = iota // 网关错误（临时）
	NotifyToast                                // 新消息提示（临时）
	NotifyReconnecting                         // 重连中（持久）
)

// SystemNotification represents a system notification.
type SystemNotification struct {
	Message   string
	Type      NotificationType
	Temporary bool // 是否为临时通知（自动消失）
}

// --- Tea Messages ---

// LoginSucceededMsg carries the user id returned by the login endpoint.
type LoginSucceededMsg struct {
	Username string
	UserID   int64
}

// LoginFailedMsg reports a rejected or failed login.
type LoginFailedMsg struct {
	Username string
	Err      error
}

// HistoryLoadedMsg carries a history result for the room/user it was
// requested for.
type HistoryLoadedMsg struct {
	RoomID int64
	UserID int64
	Items  []protocol.MessageItem
}

// HistoryFailedMsg reports a failed history request.
type HistoryFailedMsg struct {
	RoomID int64
	UserID int64
	Err    error
}

// TransportEvent is implemented by messages posted from transport
// goroutines onto the event channel.
type TransportEvent interface {
	tea.Msg
	transportEvent()
}

// WSOpenMsg indicates the WebSocket (re)connected.
type WSOpenMsg struct{}

// WSCloseMsg indicates the WebSocket connection ended.
type WSCloseMsg struct{}

// WSErrorMsg indicates a WebSocket transport error.
type WSErrorMsg struct {
	Err error
}

// WSFrameMsg carries one raw inbound WebSocket frame.
type WSFrameMsg struct {
	Data []byte
}

// SSEOpenMsg indicates an SSE subscription opened.
type SSEOpenMsg struct {
	Gen uint64
}

// SSEErrorMsg indicates an SSE subscription error.
type SSEErrorMsg struct {
	Gen uint64
	Err error
}

// SSEDataMsg carries the data of one SSE message event.
type SSEDataMsg struct {
	Gen  uint64
	Data []byte
}

// LogLineMsg appends a line to the log feed.
type LogLineMsg struct {
	Line string
}

func (WSOpenMsg) transportEvent()   {}
func (WSCloseMsg) transportEvent()  {}
func (WSErrorMsg) transportEvent()  {}
func (WSFrameMsg) transportEvent()  {}
func (SSEOpenMsg) transportEvent()  {}
func (SSEErrorMsg) transportEvent() {}
func (SSEDataMsg) transportEvent()  {}
func (LogLineMsg) transportEvent()  {}

// ClearToastMsg clears the toast with the given sequence number.
type ClearToastMsg struct {
	Seq int
}

// ClearSystemNotificationMsg clears the error notification with the given
// sequence number.
type ClearSystemNotificationMsg struct {
	Seq int
}

// --- Model Interface ---

// Model is the main interface for ChatModel, used by handler/view/input packages.
type Model interface {
	// Chat state
	State() *client.ChatState
	JoinedRoom() int64
	SetJoinedRoom(roomID int64)

	// Form
	Focus() Field
	SetFocus(Field)
	Input(Field) *textinput.Model

	// Actions
	Login() tea.Cmd
	ApplyRoom() tea.Cmd
	ApplyToUser()
	Publish()
	JoinNow()
	Quit() tea.Cmd

	// Connections
	WSState() transport.ConnState
	SSEState() transport.ConnState

	// Notification management
	SetNotification(notifyType NotificationType, message string, temporary bool)
	ClearNotification(notifyType NotificationType)
	GetCurrentNotification() *SystemNotification
	Toast(message string) tea.Cmd
	ShowError(message string) tea.Cmd

	// Sound
	PlaySound(name string)

	// Dimensions
	Width() int
	Height() int
}
