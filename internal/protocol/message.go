// Package protocol defines the wire types exchanged with the chat gateway.
package protocol

import "encoding/json"

// EventType 消息类型
type EventType string

// 客户端 → 网关
const (
	TypeJoinRoom  EventType = "join_room"  // 加入房间
	TypeLeaveRoom EventType = "leave_room" // 离开房间
	TypePublish   EventType = "publish"    // 发送消息
)

// 网关 → 客户端
const (
	TypeJoined  EventType = "joined"  // 加入房间成功
	TypeLeft    EventType = "left"    // 离开房间成功
	TypeAck     EventType = "ack"     // 发送确认（回显）
	TypeMessage EventType = "message" // 房间广播
	TypeError   EventType = "error"   // 错误
)

// ChatEvent is an inbound WebSocket frame. Only ack and message events carry
// a Data payload; Data stays raw so it can be merged field by field.
type ChatEvent struct {
	Type    EventType       `json:"type"`
	RoomID  *int64          `json:"roomId,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Code    *int            `json:"code,omitempty"`
}

// CarriesItem reports whether the event has a MessageItem payload.
func (e *ChatEvent) CarriesItem() bool {
	if e.Type != TypeAck && e.Type != TypeMessage {
		return false
	}
	return len(e.Data) > 0 && string(e.Data) != "null"
}

// JoinRoomFrame 加入房间请求
type JoinRoomFrame struct {
	Type   EventType `json:"type"`
	RoomID int64     `json:"roomId"`
}

// NewJoinRoom builds a join_room frame.
func NewJoinRoom(roomID int64) JoinRoomFrame {
	return JoinRoomFrame{Type: TypeJoinRoom, RoomID: roomID}
}

// PublishFrame 发送消息请求
type PublishFrame struct {
	Type      EventType `json:"type"`
	RoomID    int64     `json:"roomId"`
	SenderID  int64     `json:"senderId"`
	ToUserID  int64     `json:"toUserId"`
	Content   string    `json:"content"`
	ReplyToID *int64    `json:"replyToId,omitempty"`
}

// NewPublish builds a publish frame.
func NewPublish(roomID, senderID, toUserID int64, content string) PublishFrame {
	return PublishFrame{
		Type:     TypePublish,
		RoomID:   roomID,
		SenderID: senderID,
		ToUserID: toUserID,
		Content:  content,
	}
}
