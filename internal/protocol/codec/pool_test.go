package codec

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/room-chat/internal/protocol"
)

func TestBufferPool_GetPut(t *testing.T) {
	t.Parallel()

	buf := GetBuffer()
	assert.NotNil(t, buf)
	assert.Equal(t, 0, buf.Len())

	buf.WriteString("test data")
	PutBuffer(buf)

	buf2 := GetBuffer()
	assert.NotNil(t, buf2)
	assert.Equal(t, 0, buf2.Len())
}

func TestBufferPool_PutNil(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		PutBuffer(nil)
	})
}

func TestBufferPool_Concurrent(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Encode(protocol.NewJoinRoom(1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		frame    any
		expected string
	}{
		{
			name:     "join room",
			frame:    protocol.NewJoinRoom(7),
			expected: `{"type":"join_room","roomId":7}`,
		},
		{
			name:     "publish",
			frame:    protocol.NewPublish(7, 1, 2, "<hi>"),
			expected: `{"type":"publish","roomId":7,"senderId":1,"toUserId":2,"content":"<hi>"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := Encode(tt.frame)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
			assert.NotContains(t, string(data), "\n")
		})
	}
}

func TestDecodeEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantErr   bool
		wantType  protocol.EventType
		carryItem bool
	}{
		{"message", `{"type":"message","data":{"id":5,"roomId":7}}`, false, protocol.TypeMessage, true},
		{"ack", `{"type":"ack","data":{"id":5,"roomId":7}}`, false, protocol.TypeAck, true},
		{"ack without data", `{"type":"ack"}`, false, protocol.TypeAck, false},
		{"ack null data", `{"type":"ack","data":null}`, false, protocol.TypeAck, false},
		{"joined", `{"type":"joined","roomId":7}`, false, protocol.TypeJoined, false},
		{"error", `{"type":"error","message":"invalid_json"}`, false, protocol.TypeError, false},
		{"not json", `hello`, true, "", false},
		{"json string", `"hello"`, true, "", false},
		{"null", `null`, true, "", false},
		{"missing type", `{"data":{}}`, true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := DecodeEvent([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, ev)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, ev.Type)
			assert.Equal(t, tt.carryItem, ev.CarriesItem())
		})
	}
}

func TestDecodeEvent_ErrorDescribe(t *testing.T) {
	t.Parallel()

	ev, err := DecodeEvent([]byte(`{"type":"error","code":500,"message":"boom"}`))
	require.NoError(t, err)
	assert.Equal(t, "boom (code 500)", ev.Describe())

	ev, err = DecodeEvent([]byte(`{"type":"error"}`))
	require.NoError(t, err)
	assert.Equal(t, "unknown error", ev.Describe())
}

func TestMergeItem(t *testing.T) {
	t.Parallel()

	to := int64(2)
	base := protocol.MessageItem{
		ID:        5,
		RoomID:    7,
		SenderID:  1,
		ToUserID:  &to,
		Content:   "old",
		Seq:       1,
		CreatedAt: "2025-01-01T00:00:00Z",
	}

	merged, err := MergeItem(base, []byte(`{"id":5,"roomId":7,"content":"new","seq":2}`))
	require.NoError(t, err)
	assert.Equal(t, "new", merged.Content)
	assert.Equal(t, int64(2), merged.Seq)
	assert.Equal(t, "2025-01-01T00:00:00Z", merged.CreatedAt)
	require.NotNil(t, merged.ToUserID)
	assert.Equal(t, int64(2), *merged.ToUserID)

	merged, err = MergeItem(base, []byte(`{"id":5,"toUserId":null}`))
	require.NoError(t, err)
	assert.Nil(t, merged.ToUserID)

	merged, err = MergeItem(base, []byte(`{"id":5,"toUserId":9}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9), *merged.ToUserID)
	assert.Equal(t, int64(2), *base.ToUserID)

	_, err = MergeItem(base, []byte(`{`))
	assert.Error(t, err)
}

func TestDecodeItem(t *testing.T) {
	t.Parallel()

	item, err := DecodeItem([]byte(`{"id":5,"roomId":7,"senderId":2,"toUserId":null,"content":"hi","seq":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), item.ID)
	assert.Equal(t, int64(7), item.RoomID)
	assert.Nil(t, item.ToUserID)
	assert.Equal(t, "#1 [room 7] 2: hi", item.String())

	_, err = DecodeItem([]byte(`not json`))
	assert.Error(t, err)
}
