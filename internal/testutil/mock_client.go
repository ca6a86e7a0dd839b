//go:build !production

package testutil

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/room-chat/internal/apperrors"
	"github.com/palemoky/room-chat/internal/protocol/codec"
	"github.com/palemoky/room-chat/internal/transport"
)

// MockChannel 实现 transport.RealtimeChannel 与 transport.Sender 的 mock
type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockChannel) OnOpen(fn func()) func() {
	args := m.Called(fn)
	if remove, ok := args.Get(0).(func()); ok {
		return remove
	}
	return func() {}
}

func (m *MockChannel) OnMessage(fn func([]byte)) { m.Called(fn) }
func (m *MockChannel) OnError(fn func(error))    { m.Called(fn) }
func (m *MockChannel) OnClose(fn func())         { m.Called(fn) }

func (m *MockChannel) State() transport.ConnState {
	args := m.Called()
	return args.Get(0).(transport.ConnState)
}

func (m *MockChannel) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockChannel) Send(frame any) error {
	args := m.Called(frame)
	return args.Error(0)
}

func (m *MockChannel) IsOpen() bool {
	args := m.Called()
	return args.Bool(0)
}

// SimpleChannel 简单的内存通道，不使用 testify（用于不需要断言调用的测试）
// Tests drive it with Open, Deliver, Fail and Drop.
type SimpleChannel struct {
	mu       sync.Mutex
	state    transport.ConnState
	nextID   int
	opens    map[int]func()
	order    []int
	messages []func([]byte)
	errs     []func(error)
	closes   []func()
	sent     [][]byte
	SendErr  error
}

// NewSimpleChannel creates a closed in-memory channel.
func NewSimpleChannel() *SimpleChannel {
	return &SimpleChannel{opens: make(map[int]func())}
}

func (c *SimpleChannel) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == transport.StateIdle {
		c.state = transport.StateConnecting
	}
	return nil
}

func (c *SimpleChannel) OnOpen(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.opens[id] = fn
	c.order = append(c.order, id)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.opens, id)
	}
}

func (c *SimpleChannel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, fn)
}

func (c *SimpleChannel) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, fn)
}

func (c *SimpleChannel) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes = append(c.closes, fn)
}

func (c *SimpleChannel) State() transport.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *SimpleChannel) IsOpen() bool { return c.State() == transport.StateOpen }

func (c *SimpleChannel) Close() error {
	c.mu.Lock()
	c.state = transport.StateClosed
	fns := append([]func(){}, c.closes...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return nil
}

// Send records the encoded frame when the channel is open.
func (c *SimpleChannel) Send(frame any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	if c.state != transport.StateOpen {
		return apperrors.ErrNotConnected
	}
	data, err := codec.Encode(frame)
	if err != nil {
		return err
	}
	c.sent = append(c.sent, data)
	return nil
}

// Sent returns the frames sent so far as strings.
func (c *SimpleChannel) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, b := range c.sent {
		out[i] = string(b)
	}
	return out
}

// Open marks the channel open and fires open listeners in registration order.
func (c *SimpleChannel) Open() {
	c.mu.Lock()
	c.state = transport.StateOpen
	var fns []func()
	for _, id := range c.order {
		if fn, ok := c.opens[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Drop simulates a lost connection.
func (c *SimpleChannel) Drop() {
	c.mu.Lock()
	c.state = transport.StateReconnecting
	fns := append([]func(){}, c.closes...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Deliver hands data to message listeners.
func (c *SimpleChannel) Deliver(data string) {
	c.mu.Lock()
	fns := append([]func([]byte){}, c.messages...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn([]byte(data))
	}
}

// Fail hands err to error listeners.
func (c *SimpleChannel) Fail(err error) {
	c.mu.Lock()
	fns := append([]func(error){}, c.errs...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

// OpenListeners returns how many open listeners are registered.
func (c *SimpleChannel) OpenListeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.opens)
}

var (
	_ transport.RealtimeChannel = (*MockChannel)(nil)
	_ transport.Sender          = (*MockChannel)(nil)
	_ transport.RealtimeChannel = (*SimpleChannel)(nil)
	_ transport.Sender          = (*SimpleChannel)(nil)
)
