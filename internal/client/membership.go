package client

import (
	"sync"

	"github.com/palemoky/room-chat/internal/protocol"
)

// Joiner is the part of the WebSocket channel room membership needs.
type Joiner interface {
	Send(frame any) error
	IsOpen() bool
	OnOpen(fn func()) (remove func())
}

// Membership keeps the WebSocket joined to the selected room. A join for a
// closed socket is deferred to a one-shot open listener; on later reopens
// (reconnects) the current room is joined again.
type Membership struct {
	ch   Joiner
	logf func(format string, args ...any)

	mu            sync.Mutex
	roomID        int64
	active        bool
	removePending func()
}

// NewMembership wires membership to ch. logf receives the outcome of
// deferred joins and may be called from the channel's goroutine.
func NewMembership(ch Joiner, logf func(format string, args ...any)) *Membership {
	m := &Membership{ch: ch, logf: logf}
	ch.OnOpen(m.handleOpen)
	return m
}

// Ensure joins roomID now if the socket is open, otherwise on the next
// open. It replaces any pending deferred join. joined reports an immediate
// join attempt; err is its send error.
func (m *Membership) Ensure(roomID int64) (joined bool, err error) {
	m.mu.Lock()
	m.roomID = roomID
	m.active = true
	m.clearPendingLocked()

	if m.ch.IsOpen() {
		m.mu.Unlock()
		return true, m.send(roomID)
	}

	var once sync.Once
	var remove func()
	fire := func() {
		once.Do(func() {
			m.mu.Lock()
			// A newer Ensure already replaced this listener.
			if m.removePending == nil || m.roomID != roomID {
				m.mu.Unlock()
				return
			}
			m.removePending = nil
			m.mu.Unlock()
			remove()
			m.joinDeferred(roomID)
		})
	}
	remove = m.ch.OnOpen(fire)
	m.removePending = remove
	m.mu.Unlock()

	// The socket may have opened between IsOpen and OnOpen.
	if m.ch.IsOpen() {
		fire()
	}
	return false, nil
}

// JoinNow sends join_room for roomID regardless of pending state.
func (m *Membership) JoinNow(roomID int64) error {
	return m.send(roomID)
}

// Pending reports whether a deferred join is waiting for an open event.
func (m *Membership) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removePending != nil
}

// Stop drops any pending join and stops rejoining on reconnect.
func (m *Membership) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.clearPendingLocked()
}

func (m *Membership) clearPendingLocked() {
	if m.removePending != nil {
		m.removePending()
		m.removePending = nil
	}
}

// handleOpen rejoins after a reconnect. A pending one-shot handles the
// open itself.
func (m *Membership) handleOpen() {
	m.mu.Lock()
	if !m.active || m.removePending != nil {
		m.mu.Unlock()
		return
	}
	roomID := m.roomID
	m.mu.Unlock()
	m.joinDeferred(roomID)
}

func (m *Membership) joinDeferred(roomID int64) {
	if err := m.send(roomID); err != nil {
		m.logf("[WS] join_room %d failed: %v", roomID, err)
		return
	}
	m.logf("[WS] auto join_room %d", roomID)
}

func (m *Membership) send(roomID int64) error {
	return m.ch.Send(protocol.NewJoinRoom(roomID))
}
