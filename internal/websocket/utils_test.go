package websocket

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Exercises the write lock: several goroutines push typed and raw frames
// through one Conn while the peer reads them all back. Run with -race.
func TestConcurrentWriters(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan StateResponse, 256)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peer, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer peer.Close()
		for {
			var msg StateResponse
			if err := peer.ReadJSON(&msg); err != nil {
				close(received)
				return
			}
			received <- msg
		}
	}))
	defer srv.Close()

	raw, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	conn := NewConn(raw)

	const writers = 4
	const perWriter = 25

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				state := StateResponse{Event: EventState, ViolationCount: n}
				if j%2 == 0 {
					assert.NoError(t, conn.WriteTyped(state))
				} else {
					assert.NoError(t, conn.WriteRaw([]byte(`{"event":"state","violation_count":`+strconv.Itoa(n)+`}`)))
				}
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, conn.Close())

	count := 0
	for msg := range received {
		assert.Equal(t, EventState, msg.Event)
		count++
	}
	assert.Equal(t, writers*perWriter, count)
}

func TestWriteErrorShape(t *testing.T) {
	upgrader := websocket.Upgrader{}
	done := make(chan ErrorResponse, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peer, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer peer.Close()
		var msg ErrorResponse
		if err := peer.ReadJSON(&msg); err == nil {
			done <- msg
		}
	}))
	defer srv.Close()

	raw, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	conn := NewConn(raw)
	defer conn.Close()

	require.NoError(t, conn.WriteError("attempt not accessible"))

	msg := <-done
	assert.Equal(t, EventError, msg.Event)
	assert.Equal(t, "attempt not accessible", msg.Error)
}
