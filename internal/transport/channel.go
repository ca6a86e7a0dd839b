// Package transport provides the real-time channels the chat client listens
// on: an auto-reconnecting WebSocket and a Server-Sent-Events stream.
package transport

import (
	"context"
	"sync"
	"sync/atomic"
)

// RealtimeChannel is the capability set shared by the WebSocket and SSE
// adapters. Listeners run on the channel's own goroutine and must not call
// Close.
type RealtimeChannel interface {
	// Connect starts the connection loop and returns immediately.
	Connect(ctx context.Context) error
	// OnOpen registers a listener fired on every successful (re)connect.
	// The returned func deregisters it.
	OnOpen(fn func()) (remove func())
	OnMessage(fn func(data []byte))
	OnError(fn func(err error))
	OnClose(fn func())
	State() ConnState
	Close() error
}

// Sender is implemented by channels that accept outbound frames.
type Sender interface {
	Send(frame any) error
	IsOpen() bool
}

// ConnState represents the current state of a channel.
type ConnState int32

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosed
)

// String returns the string representation of a ConnState.
func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) load() ConnState   { return ConnState(b.v.Load()) }
func (b *stateBox) store(s ConnState) { b.v.Store(int32(s)) }

type openListener struct {
	id int
	fn func()
}

// listeners keeps callbacks in registration order.
type listeners struct {
	mu      sync.RWMutex
	nextID  int
	open    []openListener
	message []func([]byte)
	errs    []func(error)
	closes  []func()
}

func (l *listeners) OnOpen(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.open = append(l.open, openListener{id: id, fn: fn})
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, o := range l.open {
			if o.id == id {
				l.open = append(l.open[:i:i], l.open[i+1:]...)
				return
			}
		}
	}
}

func (l *listeners) OnMessage(fn func([]byte)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.message = append(l.message, fn)
}

func (l *listeners) OnError(fn func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, fn)
}

func (l *listeners) OnClose(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closes = append(l.closes, fn)
}

func (l *listeners) emitOpen() {
	l.mu.RLock()
	fns := make([]openListener, len(l.open))
	copy(fns, l.open)
	l.mu.RUnlock()
	for _, o := range fns {
		o.fn()
	}
}

func (l *listeners) emitMessage(data []byte) {
	l.mu.RLock()
	fns := l.message
	l.mu.RUnlock()
	for _, fn := range fns {
		fn(data)
	}
}

func (l *listeners) emitError(err error) {
	l.mu.RLock()
	fns := l.errs
	l.mu.RUnlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (l *listeners) emitClose() {
	l.mu.RLock()
	fns := l.closes
	l.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}
