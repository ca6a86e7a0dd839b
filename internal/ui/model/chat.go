// Package model contains the UI model implementations.
package model

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/palemoky/room-chat/internal/api"
	"github.com/palemoky/room-chat/internal/client"
	"github.com/palemoky/room-chat/internal/config"
	"github.com/palemoky/room-chat/internal/logger"
	"github.com/palemoky/room-chat/internal/sound"
	"github.com/palemoky/room-chat/internal/transport"
	"github.com/palemoky/room-chat/internal/ui/common"
)

// eventBufferSize 传输层事件缓冲
const eventBufferSize = 256

// WSConn is the WebSocket channel the model drives.
type WSConn interface {
	transport.RealtimeChannel
	transport.Sender
}

// Options overrides how the model builds its collaborators. Zero fields
// fall back to implementations built from the config.
type Options struct {
	ClientID string
	API      *api.Client
	Sound    *sound.SoundManager
	NewWS    func() (WSConn, error)
	NewSSE   func(roomID, userID int64) transport.RealtimeChannel
}

// ChatModel is the main model of the chat screen.
type ChatModel struct {
	cfg      *config.Config
	clientID string
	api      *api.Client
	state    *client.ChatState

	// Lifetime
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	events       chan tea.Msg

	// WebSocket
	newWS      func() (WSConn, error)
	ws         WSConn
	membership *client.Membership
	joinedRoom int64

	// SSE
	newSSE    func(roomID, userID int64) transport.RealtimeChannel
	sse       transport.RealtimeChannel
	sseCancel context.CancelFunc
	sseGen    uint64

	// System notifications
	notifications map[NotificationType]*SystemNotification
	toastSeq      int
	errorSeq      int

	// Audio
	soundManager *sound.SoundManager

	// UI components
	inputs [fieldCount]textinput.Model
	focus  Field
	width  int
	height int

	// View renderer (injected to break circular import)
	viewRenderer func(Model) string

	// Key handler (injected to break circular import)
	keyHandler func(Model, tea.KeyMsg) (bool, tea.Cmd)

	// Transport event handler (injected to break circular import)
	eventHandler func(Model, TransportEvent) tea.Cmd
}

// NewChatModel creates a new ChatModel.
func NewChatModel(cfg *config.Config, opts Options) *ChatModel {
	ctx, cancel := context.WithCancel(context.Background())

	clientID := opts.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	m := &ChatModel{
		cfg:           cfg,
		clientID:      clientID,
		api:           opts.API,
		state:         client.NewChatState(cfg.Chat.RoomID, cfg.Chat.ToUserID, cfg.Chat.MaxLogs, cfg.Chat.MaxMessages),
		ctx:           ctx,
		cancel:        cancel,
		events:        make(chan tea.Msg, eventBufferSize),
		newWS:         opts.NewWS,
		newSSE:        opts.NewSSE,
		notifications: make(map[NotificationType]*SystemNotification),
		soundManager:  opts.Sound,
	}

	if m.api == nil {
		m.api = api.NewClient(cfg.Server.Origin, clientID, cfg.Server.RequestTimeoutDuration())
	}
	if m.newWS == nil {
		m.newWS = m.defaultWS
	}
	if m.newSSE == nil {
		m.newSSE = m.defaultSSE
	}
	if m.soundManager == nil {
		m.soundManager = sound.NewSoundManager(cfg.Sound.Dir)
	}
	m.soundManager.SetMuted(cfg.Sound.Muted)

	m.initInputs()
	return m
}

func (m *ChatModel) initInputs() {
	placeholders := map[Field]string{
		FieldUsername: "username",
		FieldRoom:     "roomId",
		FieldToUser:   "toUserId",
		FieldMessage:  "message",
	}
	for _, f := range Fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = placeholders[f]
		ti.Width = 20
		switch f {
		case FieldUsername:
			ti.CharLimit = 32
			ti.SetValue(m.cfg.Chat.Username)
		case FieldRoom:
			ti.CharLimit = 19
			ti.SetValue(strconv.FormatInt(m.state.RoomID, 10))
		case FieldToUser:
			ti.CharLimit = 19
			ti.SetValue(strconv.FormatInt(m.state.ToUserID, 10))
		case FieldMessage:
			ti.CharLimit = 500
			ti.Width = 50
		}
		m.inputs[f] = ti
	}
	m.SetFocus(FieldUsername)
}

func (m *ChatModel) defaultWS() (WSConn, error) {
	url, err := m.cfg.Server.WSURL()
	if err != nil {
		return nil, err
	}
	policy := transport.ReconnectPolicy{
		InitialInterval: m.cfg.Reconnect.InitialInterval(),
		MaxInterval:     m.cfg.Reconnect.MaxInterval(),
		MaxAttempts:     m.cfg.Reconnect.MaxAttempts,
	}
	return transport.NewWSChannel(url, m.header(), m.cfg.Server.HandshakeTimeoutDuration(), policy), nil
}

func (m *ChatModel) defaultSSE(roomID, userID int64) transport.RealtimeChannel {
	url := m.cfg.Server.SSEURL(roomID, userID)
	return transport.NewSSEChannel(url, m.header(), m.cfg.SSE.RetryInterval())
}

func (m *ChatModel) header() http.Header {
	h := http.Header{}
	h.Set(api.ClientIDHeader, m.clientID)
	return h
}

func (m *ChatModel) Init() tea.Cmd {
	if !m.cfg.Sound.Muted {
		go func() {
			if err := m.soundManager.Init(); err != nil {
				logger.LogError("sound init: %v", err)
			}
		}()
	}

	cmds := []tea.Cmd{textinput.Blink, m.listenForEvents()}
	// 配置了用户名时自动登录
	if m.cfg.Chat.Username != "" {
		cmds = append(cmds, m.Login())
	}
	return tea.Batch(cmds...)
}

// listenForEvents drains one message from the transport event channel.
func (m *ChatModel) listenForEvents() tea.Cmd {
	events, done := m.events, m.ctx.Done()
	return func() tea.Msg {
		select {
		case msg := <-events:
			return msg
		case <-done:
			return nil
		}
	}
}

// post hands msg to the UI loop; it gives up once ctx is cancelled.
func (m *ChatModel) post(ctx context.Context, msg tea.Msg) {
	select {
	case m.events <- msg:
	case <-ctx.Done():
	}
}

// --- Model interface implementation ---

func (m *ChatModel) State() *client.ChatState       { return m.state }
func (m *ChatModel) JoinedRoom() int64              { return m.joinedRoom }
func (m *ChatModel) SetJoinedRoom(roomID int64)     { m.joinedRoom = roomID }
func (m *ChatModel) Focus() Field                   { return m.focus }
func (m *ChatModel) Input(f Field) *textinput.Model { return &m.inputs[f] }
func (m *ChatModel) Width() int                     { return m.width }
func (m *ChatModel) Height() int                    { return m.height }
func (m *ChatModel) PlaySound(name string)          { m.soundManager.Play(name) }

// ClientID returns the id sent in the X-Client-Id header.
func (m *ChatModel) ClientID() string { return m.clientID }

// SetFocus moves keyboard focus to f.
func (m *ChatModel) SetFocus(f Field) {
	for _, other := range Fields {
		if other == f {
			m.inputs[other].Focus()
		} else {
			m.inputs[other].Blur()
		}
	}
	m.focus = f
}

func (m *ChatModel) WSState() transport.ConnState {
	if m.ws == nil {
		return transport.StateIdle
	}
	return m.ws.State()
}

func (m *ChatModel) SSEState() transport.ConnState {
	if m.sse == nil {
		return transport.StateIdle
	}
	return m.sse.State()
}

func (m *ChatModel) SetNotification(notifyType NotificationType, message string, temporary bool) {
	m.notifications[notifyType] = &SystemNotification{
		Message:   message,
		Type:      notifyType,
		Temporary: temporary,
	}
}

func (m *ChatModel) ClearNotification(notifyType NotificationType) {
	delete(m.notifications, notifyType)
}

func (m *ChatModel) GetCurrentNotification() *SystemNotification {
	priorityOrder := []NotificationType{
		NotifyError,
		NotifyToast,
		NotifyReconnecting,
	}

	for _, notifyType := range priorityOrder {
		if notification, exists := m.notifications[notifyType]; exists {
			return notification
		}
	}
	return nil
}

// Update handles tea messages.
func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case LoginSucceededMsg:
		cmds = append(cmds, m.handleLoginSucceeded(msg)...)

	case LoginFailedMsg:
		m.handleLoginFailed(msg)

	case HistoryLoadedMsg:
		m.handleHistoryLoaded(msg)

	case HistoryFailedMsg:
		m.handleHistoryFailed(msg)

	case TransportEvent:
		if m.ctx.Err() != nil {
			return m, nil
		}
		if !m.staleSSE(msg) && m.eventHandler != nil {
			if cmd := m.eventHandler(m, msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		cmds = append(cmds, m.listenForEvents())

	case ClearToastMsg:
		if msg.Seq == m.toastSeq {
			m.ClearNotification(NotifyToast)
		}

	case ClearSystemNotificationMsg:
		if msg.Seq == m.errorSeq {
			m.ClearNotification(NotifyError)
		}

	case tea.KeyMsg:
		// Handle keyboard input via injected handler
		if m.keyHandler != nil {
			handled, keyCmd := m.keyHandler(m, msg)
			if keyCmd != nil {
				cmds = append(cmds, keyCmd)
			}
			if handled {
				return m, tea.Batch(cmds...)
			}
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// staleSSE reports whether msg belongs to a replaced SSE subscription.
func (m *ChatModel) staleSSE(msg TransportEvent) bool {
	switch ev := msg.(type) {
	case SSEOpenMsg:
		return ev.Gen != m.sseGen
	case SSEErrorMsg:
		return ev.Gen != m.sseGen
	case SSEDataMsg:
		return ev.Gen != m.sseGen
	}
	return false
}

// View renders the model.
func (m *ChatModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var content string
	if m.viewRenderer != nil {
		content = m.viewRenderer(m)
	} else {
		content = "View renderer not initialized"
	}
	return common.DocStyle.Render(content)
}

// SetViewRenderer sets the view rendering function.
func (m *ChatModel) SetViewRenderer(fn func(Model) string) {
	m.viewRenderer = fn
}

// SetKeyHandler sets the keyboard event handler function.
func (m *ChatModel) SetKeyHandler(fn func(Model, tea.KeyMsg) (bool, tea.Cmd)) {
	m.keyHandler = fn
}

// SetEventHandler sets the transport event handler function.
func (m *ChatModel) SetEventHandler(fn func(Model, TransportEvent) tea.Cmd) {
	m.eventHandler = fn
}
