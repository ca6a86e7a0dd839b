//go:build !production

package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/palemoky/room-chat/internal/protocol"
)

// FakeGateway 模拟聊天服务：登录、历史、WebSocket 与 SSE
type FakeGateway struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu            sync.Mutex
	users         map[string]int64
	history       map[int64][]protocol.MessageItem
	loginStatus   int
	historyStatus int
	nextMsgID     int64
	seq           map[int64]int64
	conns         map[*gatewayConn]struct{}
	received      []string
	subs          map[int64]map[chan protocol.MessageItem]struct{}
	lastEventIDs  []string
	clientIDs     []string
	done          chan struct{}
	closeOnce     sync.Once
}

type gatewayConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
	room int64
}

func (c *gatewayConn) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

// NewFakeGateway starts a gateway on a local httptest server.
func NewFakeGateway() *FakeGateway {
	g := &FakeGateway{
		upgrader:      websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		users:         make(map[string]int64),
		history:       make(map[int64][]protocol.MessageItem),
		loginStatus:   http.StatusOK,
		historyStatus: http.StatusOK,
		seq:           make(map[int64]int64),
		conns:         make(map[*gatewayConn]struct{}),
		subs:          make(map[int64]map[chan protocol.MessageItem]struct{}),
		done:          make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/user/login", g.handleLogin)
	mux.HandleFunc("GET /api/chat/rooms/{roomId}/history", g.handleHistory)
	mux.HandleFunc("GET /ws", g.handleWS)
	mux.HandleFunc("GET /sse/rooms/{roomId}", g.handleSSE)
	g.server = httptest.NewServer(mux)
	return g
}

// URL returns the http origin of the gateway.
func (g *FakeGateway) URL() string { return g.server.URL }

// Close disconnects every client and stops the server.
func (g *FakeGateway) Close() {
	g.closeOnce.Do(func() {
		close(g.done)
		g.mu.Lock()
		for c := range g.conns {
			_ = c.conn.Close()
		}
		g.mu.Unlock()
		g.server.CloseClientConnections()
		g.server.Close()
	})
}

// SetHistory sets the history returned for a room.
func (g *FakeGateway) SetHistory(roomID int64, items []protocol.MessageItem) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history[roomID] = items
}

// SetLoginStatus makes login answer with status.
func (g *FakeGateway) SetLoginStatus(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loginStatus = status
}

// SetHistoryStatus makes history answer with status.
func (g *FakeGateway) SetHistoryStatus(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.historyStatus = status
}

// Received returns every WebSocket frame the gateway has read.
func (g *FakeGateway) Received() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.received...)
}

// Connections returns the number of live WebSocket connections.
func (g *FakeGateway) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Subscribers returns the number of SSE streams open for a room.
func (g *FakeGateway) Subscribers(roomID int64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs[roomID])
}

// LastEventIDs returns the Last-Event-ID headers seen on SSE requests.
func (g *FakeGateway) LastEventIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.lastEventIDs...)
}

// ClientIDs returns the X-Client-Id headers seen on every request.
func (g *FakeGateway) ClientIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.clientIDs...)
}

// PushWS writes a raw frame to every WebSocket connection.
func (g *FakeGateway) PushWS(frame string) {
	g.mu.Lock()
	conns := make([]*gatewayConn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()
	for _, c := range conns {
		c.wmu.Lock()
		_ = c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
		c.wmu.Unlock()
	}
}

// DropWS closes every WebSocket connection without a close frame.
func (g *FakeGateway) DropWS() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for c := range g.conns {
		_ = c.conn.Close()
	}
}

// PushSSE delivers item to the SSE subscribers of its room.
func (g *FakeGateway) PushSSE(item protocol.MessageItem) {
	g.mu.Lock()
	subs := make([]chan protocol.MessageItem, 0, len(g.subs[item.RoomID]))
	for ch := range g.subs[item.RoomID] {
		subs = append(subs, ch)
	}
	g.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- item:
		case <-g.done:
			return
		}
	}
}

func (g *FakeGateway) noteClient(r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clientIDs = append(g.clientIDs, r.Header.Get("X-Client-Id"))
}

func (g *FakeGateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	g.noteClient(r)
	var req protocol.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	g.mu.Lock()
	status := g.loginStatus
	id, ok := g.users[req.Username]
	if !ok && status == http.StatusOK {
		id = int64(len(g.users) + 1)
		g.users[req.Username] = id
	}
	g.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, "rejected", status)
		return
	}
	writeJSON(w, protocol.LoginResponse{UserID: id, Username: req.Username})
}

func (g *FakeGateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	g.noteClient(r)
	roomID, err := strconv.ParseInt(r.PathValue("roomId"), 10, 64)
	if err != nil {
		http.Error(w, "bad room", http.StatusBadRequest)
		return
	}

	g.mu.Lock()
	status := g.historyStatus
	items := append([]protocol.MessageItem{}, g.history[roomID]...)
	g.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, "unavailable", status)
		return
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	writeJSON(w, protocol.HistoryResponse{Items: items})
}

func (g *FakeGateway) handleWS(w http.ResponseWriter, r *http.Request) {
	g.noteClient(r)
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	gc := &gatewayConn{conn: conn}

	g.mu.Lock()
	g.conns[gc] = struct{}{}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.conns, gc)
		g.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		g.mu.Lock()
		g.received = append(g.received, string(data))
		g.mu.Unlock()
		g.dispatch(gc, data)
	}
}

type inboundFrame struct {
	Type     string `json:"type"`
	RoomID   int64  `json:"roomId"`
	SenderID int64  `json:"senderId"`
	ToUserID *int64 `json:"toUserId"`
	Content  string `json:"content"`
}

func (g *FakeGateway) dispatch(gc *gatewayConn, data []byte) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		gc.write(map[string]any{"type": "error", "message": "invalid json", "code": 400})
		return
	}

	switch in.Type {
	case string(protocol.TypeJoinRoom):
		g.mu.Lock()
		gc.room = in.RoomID
		g.mu.Unlock()
		gc.write(map[string]any{"type": "joined", "roomId": in.RoomID})
	case string(protocol.TypeLeaveRoom):
		g.mu.Lock()
		gc.room = 0
		g.mu.Unlock()
		gc.write(map[string]any{"type": "left", "roomId": in.RoomID})
	case string(protocol.TypePublish):
		item := g.store(in)
		gc.write(map[string]any{"type": "ack", "roomId": item.RoomID, "data": item})
		g.broadcast(gc, item)
		go g.PushSSE(item)
	default:
		gc.write(map[string]any{"type": "error", "message": fmt.Sprintf("unknown type %q", in.Type), "code": 400})
	}
}

func (g *FakeGateway) store(in inboundFrame) protocol.MessageItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextMsgID++
	g.seq[in.RoomID]++
	item := protocol.MessageItem{
		ID:       g.nextMsgID,
		RoomID:   in.RoomID,
		SenderID: in.SenderID,
		ToUserID: in.ToUserID,
		Content:  in.Content,
		Seq:      g.seq[in.RoomID],
	}
	g.history[in.RoomID] = append(g.history[in.RoomID], item)
	return item
}

func (g *FakeGateway) broadcast(from *gatewayConn, item protocol.MessageItem) {
	g.mu.Lock()
	var peers []*gatewayConn
	for c := range g.conns {
		if c != from && c.room == item.RoomID {
			peers = append(peers, c)
		}
	}
	g.mu.Unlock()
	for _, c := range peers {
		c.write(map[string]any{"type": "message", "roomId": item.RoomID, "data": item})
	}
}

func (g *FakeGateway) handleSSE(w http.ResponseWriter, r *http.Request) {
	g.noteClient(r)
	roomID, err := strconv.ParseInt(r.PathValue("roomId"), 10, 64)
	if err != nil {
		http.Error(w, "bad room", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := make(chan protocol.MessageItem, 16)
	g.mu.Lock()
	g.lastEventIDs = append(g.lastEventIDs, r.Header.Get("Last-Event-ID"))
	if g.subs[roomID] == nil {
		g.subs[roomID] = make(map[chan protocol.MessageItem]struct{})
	}
	g.subs[roomID][ch] = struct{}{}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.subs[roomID], ch)
		g.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": subscribed\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-g.done:
			return
		case item := <-ch:
			data, err := json.Marshal(item)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: message\nid: %d\ndata: %s\n\n", item.Seq, data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
