package transport

import (
	"context"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/palemoky/room-chat/internal/logger"
)

// ErrStreamRejected is reported when the server answers with a status or
// content type that does not open an event stream. The channel stops
// retrying after it.
var ErrStreamRejected = errors.New("sse: stream rejected")

// SSEChannel subscribes to a Server-Sent-Events stream with EventSource
// reconnection: after a dropped stream it waits the server-advertised retry
// interval and reconnects with Last-Event-ID.
type SSEChannel struct {
	url        string
	header     http.Header
	httpClient *http.Client

	listeners
	state stateBox

	mu          sync.Mutex
	retry       time.Duration
	lastEventID string
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewSSEChannel creates an SSE channel for url. retry is used until the
// server sends its own "retry:" field.
func NewSSEChannel(url string, header http.Header, retry time.Duration) *SSEChannel {
	return &SSEChannel{
		url:    url,
		header: header,
		// No client timeout: the response body stays open for the
		// lifetime of the subscription.
		httpClient: &http.Client{},
		retry:      retry,
		done:       make(chan struct{}),
	}
}

// Connect 启动订阅循环
func (c *SSEChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("sse: already started")
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.store(StateConnecting)
	go c.run(runCtx)
	return nil
}

// State 当前连接状态
func (c *SSEChannel) State() ConnState { return c.state.load() }

// LastEventID returns the last event id received.
func (c *SSEChannel) LastEventID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventID
}

// Close ends the subscription and waits for the loop to exit.
func (c *SSEChannel) Close() error {
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

func (c *SSEChannel) run(ctx context.Context) {
	defer close(c.done)
	defer c.state.store(StateClosed)
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
		}
	}()

	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		c.emitError(err)
		if errors.Is(err, ErrStreamRejected) {
			logger.LogError("sse %s: %v", c.url, err)
			return
		}

		c.mu.Lock()
		retry := c.retry
		c.mu.Unlock()

		c.state.store(StateReconnecting)
		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		c.state.store(StateConnecting)
	}
}

// stream performs one request and reads events until the body ends.
func (c *SSEChannel) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return errors.Wrap(ErrStreamRejected, err.Error())
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if id := c.LastEventID(); id != "" {
		req.Header.Set("Last-Event-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "sse request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrStreamRejected, "status %d", resp.StatusCode)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		return errors.Wrapf(ErrStreamRejected, "content type %q", mediaType)
	}

	c.state.store(StateOpen)
	logger.LogInfo("sse subscribed: %s", c.url)
	c.emitOpen()

	scanner := NewSSEScanner(resp.Body)
	scanner.lastID = c.LastEventID()
	for scanner.Next() {
		ev := scanner.Event()
		c.remember(scanner)
		if ev.Type != "" && ev.Type != "message" {
			continue
		}
		c.emitMessage([]byte(ev.Data))
	}
	c.remember(scanner)
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "sse read")
	}
	return errors.New("sse: stream ended")
}

// remember keeps the stream position and retry interval for the next
// request. A "retry: 0" keeps the current interval.
func (c *SSEChannel) remember(scanner *SSEScanner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastEventID = scanner.LastEventID()
	if r := scanner.Retry(); r > 0 {
		c.retry = r
	}
}
