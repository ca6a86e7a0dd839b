package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/palemoky/room-chat/internal/apperrors"
	"github.com/palemoky/room-chat/internal/logger"
	"github.com/palemoky/room-chat/internal/protocol/codec"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBufferSize = 256
)

// ReconnectPolicy controls the exponential backoff between reconnects.
type ReconnectPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     int // 0 = 不限
}

// DefaultReconnectPolicy 默认重连策略
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

func (p ReconnectPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	if p.MaxAttempts > 0 {
		return backoff.WithMaxRetries(b, uint64(p.MaxAttempts))
	}
	return b
}

// WSChannel is an auto-reconnecting WebSocket client. Inbound text frames
// are handed to OnMessage listeners untouched.
type WSChannel struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	policy ReconnectPolicy

	listeners
	state stateBox
	send  chan []byte

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWSChannel creates a WebSocket channel for url. header is sent with
// every handshake.
func NewWSChannel(url string, header http.Header, handshakeTimeout time.Duration, policy ReconnectPolicy) *WSChannel {
	return &WSChannel{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		policy: policy,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Connect 启动连接循环
func (c *WSChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("websocket: already started")
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.store(StateConnecting)
	go c.run(runCtx)
	return nil
}

// State 当前连接状态
func (c *WSChannel) State() ConnState { return c.state.load() }

// IsOpen 是否已连接
func (c *WSChannel) IsOpen() bool { return c.state.load() == StateOpen }

// Send encodes frame as JSON and queues it for the writer.
func (c *WSChannel) Send(frame any) error {
	switch c.state.load() {
	case StateOpen:
	case StateClosed:
		return apperrors.ErrClosed
	default:
		return apperrors.ErrNotConnected
	}

	data, err := codec.Encode(frame)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
		return apperrors.ErrSendBufferFull
	}
}

// Close stops reconnecting, closes the connection and waits for the
// connection loop to exit.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	started := c.started
	cancel := c.cancel
	c.started = true
	c.mu.Unlock()

	if !started {
		c.state.store(StateClosed)
		return nil
	}
	if cancel != nil {
		cancel()
		<-c.done
	}
	return nil
}

// run 连接循环：断开后按指数退避重连
func (c *WSChannel) run(ctx context.Context) {
	defer close(c.done)
	defer c.state.store(StateClosed)
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
		}
	}()

	b := c.policy.newBackOff()
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.LogError("websocket dial %s: %v", c.url, err)
			c.emitError(errors.Wrap(err, "dial"))
			c.emitClose()
		} else {
			b.Reset()
			err = c.serve(ctx, conn)
			c.emitClose()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				c.emitError(err)
			}
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			logger.LogError("websocket: giving up after %d attempts", c.policy.MaxAttempts)
			return
		}
		c.state.store(StateReconnecting)
		logger.LogInfo("websocket: reconnecting in %s", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		c.state.store(StateConnecting)
	}
}

// serve runs the pumps for one connection and returns when either exits.
// A nil return means the peer closed normally or ctx was cancelled.
func (c *WSChannel) serve(ctx context.Context, conn *websocket.Conn) error {
	c.drainSend()
	c.state.store(StateOpen)
	logger.LogInfo("websocket connected: %s", c.url)
	c.emitOpen()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(conn) })
	g.Go(func() error { return c.writePump(gctx, conn) })
	err := g.Wait()
	c.state.store(StateReconnecting)
	if errors.Is(err, errClosedByPeer) {
		return nil
	}
	return err
}

// readPump 从服务器读取消息
func (c *WSChannel) readPump(conn *websocket.Conn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
			err = errors.Errorf("readPump panic: %v", r)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				// 正常关闭：通知写协程退出
				return errClosedByPeer
			}
			return errors.Wrap(err, "read")
		}
		c.emitMessage(message)
	}
}

var errClosedByPeer = errors.New("closed by peer")

// writePump 向服务器写入消息
func (c *WSChannel) writePump(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return errors.Wrap(err, "write")
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return errors.Wrap(err, "ping")
			}

		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return nil
		}
	}
}

// drainSend drops frames queued for a connection that no longer exists.
func (c *WSChannel) drainSend() {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}
