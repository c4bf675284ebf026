package handlers_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/api/handlers"
)

func dialStream(t *testing.T, hub *handlers.StreamHub) *websocket.Conn {
	t.Helper()
	router := gin.New()
	router.GET("/ws", hub.Handle)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) handlers.StreamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg handlers.StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStreamHub_SubscribeAndBroadcast(t *testing.T) {
	h := newHarness(t)
	hub := handlers.NewStreamHub(h.engine, h.market, time.Hour, []string{"*"}, zap.NewNop())
	conn := dialStream(t, hub)

	require.NoError(t, conn.WriteJSON(handlers.StreamRequest{Type: "subscribe", Channel: handlers.ChannelCrowd}))

	ack := readMessage(t, conn)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, handlers.ChannelCrowd, ack.Channel)

	first := readMessage(t, conn)
	assert.Equal(t, "event", first.Type)
	assert.NotNil(t, first.Data)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	hub.Broadcast(context.Background())

	pushed := readMessage(t, conn)
	assert.Equal(t, "event", pushed.Type)
	assert.Equal(t, handlers.ChannelCrowd, pushed.Channel)
	assert.NotZero(t, pushed.TS)
}

func TestStreamHub_RejectsUnknownChannels(t *testing.T) {
	h := newHarness(t)
	hub := handlers.NewStreamHub(h.engine, h.market, time.Hour, nil, zap.NewNop())
	conn := dialStream(t, hub)

	for _, channel := range []string{"prices", "leaderboard.hourly", "agent."} {
		require.NoError(t, conn.WriteJSON(handlers.StreamRequest{Type: "subscribe", Channel: channel}))
		msg := readMessage(t, conn)
		assert.Equal(t, "error", msg.Type, channel)
		assert.NotEmpty(t, msg.Error)
	}

	require.NoError(t, conn.WriteJSON(handlers.StreamRequest{Type: "ping", Channel: handlers.ChannelMarket}))
	assert.Equal(t, "error", readMessage(t, conn).Type)
}

func TestStreamHub_ShutdownDisconnectsClients(t *testing.T) {
	h := newHarness(t)
	hub := handlers.NewStreamHub(h.engine, h.market, 10*time.Millisecond, nil, zap.NewNop())
	hub.Start(context.Background())
	conn := dialStream(t, hub)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Shutdown(time.Second))
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
