package client

import (
	"fmt"
	"strings"

	"github.com/palemoky/room-chat/internal/apperrors"
	"github.com/palemoky/room-chat/internal/protocol"
	"github.com/palemoky/room-chat/internal/protocol/codec"
)

// ChatState holds everything the chat screen renders. It is owned by the
// UI loop; every method assumes a single caller at a time.
type ChatState struct {
	RoomID   int64
	UserID   int64 // 0 until login succeeds
	Username string
	ToUserID int64
	Draft    string

	Logs        *LogBuffer
	Messages    []protocol.MessageItem
	SSEMessages []protocol.MessageItem

	maxMessages int
}

// NewChatState creates a chat state bounded to maxLogs log lines and
// maxMessages entries per message list.
func NewChatState(roomID, toUserID int64, maxLogs, maxMessages int) *ChatState {
	if maxMessages < 1 {
		maxMessages = 1
	}
	return &ChatState{
		RoomID:      roomID,
		ToUserID:    toUserID,
		Logs:        NewLogBuffer(maxLogs),
		maxMessages: maxMessages,
	}
}

// Authenticated reports whether login has produced a user id.
func (s *ChatState) Authenticated() bool { return s.UserID != 0 }

// Logf appends a line to the log feed.
func (s *ChatState) Logf(format string, args ...any) {
	s.Logs.Append(fmt.Sprintf(format, args...))
}

// ApplyLogin stores the user id returned by the login endpoint.
func (s *ChatState) ApplyLogin(userID int64) {
	s.UserID = userID
	s.Logf("[AUTH] login ok userId=%d", userID)
}

// SetRoom switches the selected room. Returns false if unchanged.
func (s *ChatState) SetRoom(roomID int64) bool {
	if roomID == s.RoomID {
		return false
	}
	s.RoomID = roomID
	return true
}

// WSResult describes what an inbound WebSocket frame did to the state.
type WSResult struct {
	Event    *protocol.ChatEvent // nil when the frame was not valid JSON
	Item     *protocol.MessageItem
	Upserted bool
}

// ApplyWSFrame logs a raw WebSocket frame and, for ack/message events in
// the current room, upserts the payload by id. Malformed frames only leave
// the log line behind.
func (s *ChatState) ApplyWSFrame(raw []byte) WSResult {
	s.Logf("[WS] <= %s", raw)

	ev, err := codec.DecodeEvent(raw)
	if err != nil {
		return WSResult{}
	}
	res := WSResult{Event: ev}

	switch ev.Type {
	case protocol.TypeError:
		s.Logf("[WS] error: %s", ev.Describe())
		return res
	case protocol.TypeAck, protocol.TypeMessage:
	default:
		return res
	}
	if !ev.CarriesItem() {
		return res
	}

	item, err := codec.DecodeItem(ev.Data)
	if err != nil || item.RoomID != s.RoomID {
		return res
	}

	merged, ok := s.upsert(item, ev.Data)
	if !ok {
		return res
	}
	res.Item = &merged
	res.Upserted = true
	return res
}

func (s *ChatState) upsert(item protocol.MessageItem, raw []byte) (protocol.MessageItem, bool) {
	for i := range s.Messages {
		if s.Messages[i].ID != item.ID {
			continue
		}
		merged, err := codec.MergeItem(s.Messages[i], raw)
		if err != nil {
			return item, false
		}
		if merged.Source == "" {
			merged.Source = protocol.SourceWS
		}
		s.Messages[i] = merged
		return merged, true
	}

	item.Source = protocol.SourceWS
	s.Messages = s.appendBounded(s.Messages, item)
	return item, true
}

// ApplySSEData handles one SSE data payload. Items for the current room
// with an id not yet seen are appended to both lists; the returned bool
// reports whether the SSE list gained the item. Malformed payloads change
// nothing.
func (s *ChatState) ApplySSEData(data []byte) (protocol.MessageItem, bool) {
	item, err := codec.DecodeItem(data)
	if err != nil {
		return item, false
	}
	s.Logf("[SSE] <= %s", strings.TrimSpace(string(data)))

	item.Source = protocol.SourceSSE
	if item.RoomID != s.RoomID {
		return item, false
	}

	if !containsID(s.Messages, item.ID) {
		s.Messages = s.appendBounded(s.Messages, item)
	}
	if containsID(s.SSEMessages, item.ID) {
		return item, false
	}
	s.SSEMessages = s.appendBounded(s.SSEMessages, item)
	return item, true
}

// ReplaceHistory replaces the unified message list with a history result.
func (s *ChatState) ReplaceHistory(items []protocol.MessageItem) {
	if len(items) > s.maxMessages {
		items = items[len(items)-s.maxMessages:]
	}
	s.Messages = append(make([]protocol.MessageItem, 0, len(items)), items...)
}

// errEmptyDraft is returned by PreparePublish for a blank draft.
var errEmptyDraft = &apperrors.ChatError{Code: "empty_draft", Message: "empty message"}

// PreparePublish builds the publish frame for the current draft. Without a
// user id it logs and returns apperrors.ErrNotAuthenticated.
func (s *ChatState) PreparePublish() (protocol.PublishFrame, error) {
	if !s.Authenticated() {
		s.Logf("[APP] login first")
		return protocol.PublishFrame{}, apperrors.ErrNotAuthenticated
	}
	if strings.TrimSpace(s.Draft) == "" {
		return protocol.PublishFrame{}, errEmptyDraft
	}
	return protocol.NewPublish(s.RoomID, s.UserID, s.ToUserID, s.Draft), nil
}

// IsEmptyDraft reports whether err came from publishing a blank draft.
func IsEmptyDraft(err error) bool { return err == errEmptyDraft }

func (s *ChatState) appendBounded(list []protocol.MessageItem, item protocol.MessageItem) []protocol.MessageItem {
	list = append(list, item)
	if over := len(list) - s.maxMessages; over > 0 {
		list = append(list[:0:0], list[over:]...)
	}
	return list
}

func containsID(list []protocol.MessageItem, id int64) bool {
	for i := range list {
		if list[i].ID == id {
			return true
		}
	}
	return false
}
