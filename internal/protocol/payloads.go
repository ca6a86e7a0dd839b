package protocol

import "fmt"

// Source records which channel first observed a message.
type Source string

const (
	SourceWS  Source = "ws"
	SourceSSE Source = "sse"
)

// MessageItem is a chat message as served by the history endpoint, the SSE
// stream and the WebSocket ack/message events.
type MessageItem struct {
	ID        int64  `json:"id"`
	RoomID    int64  `json:"roomId"`
	SenderID  int64  `json:"senderId"`
	ToUserID  *int64 `json:"toUserId"`
	Content   string `json:"content"`
	Seq       int64  `json:"seq"`
	CreatedAt string `json:"createdAt,omitempty"`
	ReplyToID *int64 `json:"replyToId,omitempty"`
	Source    Source `json:"source,omitempty"`
}

// String renders the item the way the message panels show it.
func (m MessageItem) String() string {
	return fmt.Sprintf("#%d [room %d] %d: %s", m.Seq, m.RoomID, m.SenderID, m.Content)
}

// --- REST ---

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username,omitempty"`
}

// HistoryResponse 历史消息响应
type HistoryResponse struct {
	Items []MessageItem `json:"items"`
}
