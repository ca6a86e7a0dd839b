package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseRecorder struct {
	mu     sync.Mutex
	data   []string
	errs   []error
	opens  int
	closes int
}

func (r *sseRecorder) attach(ch *SSEChannel) {
	ch.OnOpen(func() {
		r.mu.Lock()
		r.opens++
		r.mu.Unlock()
	})
	ch.OnMessage(func(b []byte) {
		r.mu.Lock()
		r.data = append(r.data, string(b))
		r.mu.Unlock()
	})
	ch.OnError(func(err error) {
		r.mu.Lock()
		r.errs = append(r.errs, err)
		r.mu.Unlock()
	})
}

func (r *sseRecorder) snapshot() ([]string, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.data...), r.opens, len(r.errs)
}

func TestSSEChannel_ReceivesMessages(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "1", r.URL.Query().Get("toUserId"))
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "id: 1\nevent: message\ndata: {\"id\":5}\n\n")
		_, _ = fmt.Fprint(w, "event: ping\ndata: {}\n\n")
		_, _ = fmt.Fprint(w, "data: {\"id\":6}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer s.Close()

	ch := NewSSEChannel(s.URL+"/sse/rooms/7?toUserId=1", nil, 50*time.Millisecond)
	rec := &sseRecorder{}
	rec.attach(ch)

	require.NoError(t, ch.Connect(context.Background()))
	require.Eventually(t, func() bool {
		data, _, _ := rec.snapshot()
		return len(data) == 2
	}, 2*time.Second, 10*time.Millisecond)

	data, opens, _ := rec.snapshot()
	assert.Equal(t, []string{`{"id":5}`, `{"id":6}`}, data, "non-message event types are skipped")
	assert.Equal(t, 1, opens)
	assert.Equal(t, StateOpen, ch.State())
	assert.Equal(t, "1", ch.LastEventID())

	require.NoError(t, ch.Close())
	assert.Equal(t, StateClosed, ch.State())
}

func TestSSEChannel_ReconnectsWithLastEventID(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	lastIDs := make(chan string, 4)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		lastIDs <- r.Header.Get("Last-Event-ID")
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if n == 1 {
			// Drop the stream after one event.
			_, _ = fmt.Fprint(w, "retry: 20\nid: 41\ndata: first\n\n")
			return
		}
		_, _ = fmt.Fprint(w, "data: second\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer s.Close()

	ch := NewSSEChannel(s.URL, nil, time.Hour)
	rec := &sseRecorder{}
	rec.attach(ch)

	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Close()

	require.Eventually(t, func() bool {
		data, _, _ := rec.snapshot()
		return len(data) == 2
	}, 2*time.Second, 10*time.Millisecond, "server retry interval overrides the hour-long default")

	data, opens, errs := rec.snapshot()
	assert.Equal(t, []string{"first", "second"}, data)
	assert.Equal(t, 2, opens)
	assert.Equal(t, 1, errs)

	assert.Equal(t, "", <-lastIDs)
	assert.Equal(t, "41", <-lastIDs)
}

func TestSSEChannel_RejectedStops(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}},
		{"wrong content type", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var requests atomic.Int32
			s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				tt.handler(w, r)
			}))
			defer s.Close()

			ch := NewSSEChannel(s.URL, nil, 10*time.Millisecond)
			rec := &sseRecorder{}
			rec.attach(ch)

			require.NoError(t, ch.Connect(context.Background()))
			require.Eventually(t, func() bool { return ch.State() == StateClosed }, 2*time.Second, 10*time.Millisecond)

			time.Sleep(50 * time.Millisecond)
			assert.Equal(t, int32(1), requests.Load())
			_, opens, errs := rec.snapshot()
			assert.Zero(t, opens)
			assert.Equal(t, 1, errs)
			require.NoError(t, ch.Close())
		})
	}
}

func TestSSEChannel_NetworkErrorRetries(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.NotFoundHandler())
	url := s.URL
	s.Close()

	ch := NewSSEChannel(url, nil, 10*time.Millisecond)
	rec := &sseRecorder{}
	rec.attach(ch)

	require.NoError(t, ch.Connect(context.Background()))
	require.Eventually(t, func() bool {
		_, _, errs := rec.snapshot()
		return errs >= 3
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ch.Close())
	assert.Equal(t, StateClosed, ch.State())
}

func TestSSEChannel_CloseWithoutConnect(t *testing.T) {
	t.Parallel()

	ch := NewSSEChannel("http://127.0.0.1:1", nil, time.Second)
	require.NoError(t, ch.Close())
	assert.Equal(t, StateClosed, ch.State())
	assert.Error(t, ch.Connect(context.Background()))
}

func TestConnState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    ConnState
		expected string
	}{
		{StateIdle, "idle"},
		{StateConnecting, "connecting"},
		{StateOpen, "open"},
		{StateReconnecting, "reconnecting"},
		{StateClosed, "closed"},
		{ConnState(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}

func TestSSEChannel_ZeroRetryKeepsInterval(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "retry: 0\nid: 1\ndata: first\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer s.Close()

	ch := NewSSEChannel(s.URL, nil, 50*time.Millisecond)
	rec := &sseRecorder{}
	rec.attach(ch)

	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Close()

	require.Eventually(t, func() bool {
		data, _, _ := rec.snapshot()
		return len(data) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ch.mu.Lock()
	defer ch.mu.Unlock()
	assert.Equal(t, 50*time.Millisecond, ch.retry)
	assert.Equal(t, "1", ch.lastEventID)
}
