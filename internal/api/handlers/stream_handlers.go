package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	"github.com/Mikespro21/ARC/internal/domain/services/agent"
	"github.com/Mikespro21/ARC/internal/domain/services/market"
	"github.com/Mikespro21/ARC/pkg/metrics"
)

const (
	ChannelSnapshot          = "snapshot"
	ChannelCrowd             = "crowd"
	ChannelMarket            = "market"
	channelLeaderboardPrefix = "leaderboard."
	channelAgentPrefix       = "agent."

	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 50 * time.Second
	streamMaxMessage = 4096
	streamSendBuffer = 32
	maxSubscriptions = 32
)

// StreamRequest is a client control message
type StreamRequest struct {
	Type    string `json:"type"` // subscribe or unsubscribe
	Channel string `json:"channel"`
}

// StreamMessage is pushed to clients. Type is event, subscribed,
// unsubscribed or error.
type StreamMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	TS      int64       `json:"ts"`
}

type streamClient struct {
	conn     *websocket.Conn
	send     chan []byte
	channels map[string]struct{}
}

// StreamHub pushes engine views to websocket subscribers on a fixed interval
type StreamHub struct {
	engine   *agent.Service
	market   *market.MarketDataService
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewStreamHub(engine *agent.Service, marketService *market.MarketDataService, interval time.Duration, allowedOrigins []string, logger *zap.Logger) *StreamHub {
	return &StreamHub{
		engine:   engine,
		market:   marketService,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
		stopCh:  make(chan struct{}),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Start begins the push loop
func (h *StreamHub) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.run(ctx)
}

// Shutdown stops the push loop and disconnects every client. Implements graceful.Shutdowner.
func (h *StreamHub) Shutdown(timeout time.Duration) error {
	h.stopOnce.Do(func() { close(h.stopCh) })

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return fmt.Errorf("stream hub did not stop within %s", timeout)
	}

	h.mu.Lock()
	for client := range h.clients {
		h.removeLocked(client)
	}
	h.mu.Unlock()
	return nil
}

// ClientCount returns the number of connected clients
func (h *StreamHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handle upgrades GET /api/v1/ws
func (h *StreamHub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := &streamClient{
		conn:     conn,
		send:     make(chan []byte, streamSendBuffer),
		channels: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	metrics.WebsocketClients.Inc()

	go h.writePump(client)
	h.readPump(c.Request.Context(), client)
}

func (h *StreamHub) readPump(ctx context.Context, client *streamClient) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(client)
		h.mu.Unlock()
	}()

	client.conn.SetReadLimit(streamMaxMessage)
	_ = client.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		var req StreamRequest
		if err := client.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket read failed", zap.Error(err))
			}
			return
		}
		h.handleRequest(ctx, client, req)
	}
}

func (h *StreamHub) handleRequest(ctx context.Context, client *streamClient, req StreamRequest) {
	channel := strings.TrimSpace(req.Channel)
	if err := validateChannel(channel); err != nil {
		h.reply(client, StreamMessage{Type: "error", Channel: channel, Error: err.Error()})
		return
	}

	switch req.Type {
	case "subscribe":
		h.mu.Lock()
		if _, ok := h.clients[client]; !ok {
			h.mu.Unlock()
			return
		}
		if len(client.channels) >= maxSubscriptions {
			h.mu.Unlock()
			h.reply(client, StreamMessage{Type: "error", Channel: channel, Error: "too many subscriptions"})
			return
		}
		client.channels[channel] = struct{}{}
		h.mu.Unlock()

		h.reply(client, StreamMessage{Type: "subscribed", Channel: channel})
		if data, err := h.channelData(ctx, channel); err == nil {
			h.reply(client, StreamMessage{Type: "event", Channel: channel, Data: data})
		}
	case "unsubscribe":
		h.mu.Lock()
		delete(client.channels, channel)
		h.mu.Unlock()
		h.reply(client, StreamMessage{Type: "unsubscribed", Channel: channel})
	default:
		h.reply(client, StreamMessage{Type: "error", Channel: channel, Error: "type must be subscribe or unsubscribe"})
	}
}

func validateChannel(channel string) error {
	switch {
	case channel == ChannelSnapshot, channel == ChannelCrowd, channel == ChannelMarket:
		return nil
	case strings.HasPrefix(channel, channelLeaderboardPrefix):
		if entities.LeaderboardPeriod(strings.TrimPrefix(channel, channelLeaderboardPrefix)).IsValid() {
			return nil
		}
		return fmt.Errorf("unknown leaderboard period")
	case strings.HasPrefix(channel, channelAgentPrefix):
		if strings.TrimPrefix(channel, channelAgentPrefix) != "" {
			return nil
		}
		return fmt.Errorf("agent id required")
	}
	return fmt.Errorf("unknown channel %q", channel)
}

func (h *StreamHub) channelData(ctx context.Context, channel string) (interface{}, error) {
	switch {
	case channel == ChannelSnapshot:
		return h.engine.Snapshot(ctx), nil
	case channel == ChannelCrowd:
		return h.engine.CrowdMetrics(), nil
	case channel == ChannelMarket:
		data, _ := h.market.Latest()
		return data, nil
	case strings.HasPrefix(channel, channelLeaderboardPrefix):
		return h.engine.Leaderboard(entities.LeaderboardPeriod(strings.TrimPrefix(channel, channelLeaderboardPrefix)))
	case strings.HasPrefix(channel, channelAgentPrefix):
		return h.engine.GetAgent(ctx, strings.TrimPrefix(channel, channelAgentPrefix))
	}
	return nil, fmt.Errorf("unknown channel %q", channel)
}

func (h *StreamHub) run(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.Broadcast(ctx)
		}
	}
}

// Broadcast pushes one event per subscribed channel to every client
func (h *StreamHub) Broadcast(ctx context.Context) {
	h.mu.Lock()
	wanted := make(map[string]struct{})
	for client := range h.clients {
		for channel := range client.channels {
			wanted[channel] = struct{}{}
		}
	}
	h.mu.Unlock()
	if len(wanted) == 0 {
		return
	}

	now := time.Now().UnixMilli()
	payloads := make(map[string][]byte, len(wanted))
	for channel := range wanted {
		data, err := h.channelData(ctx, channel)
		if err != nil {
			// deleted agents stay subscribed but receive nothing
			continue
		}
		payload, err := json.Marshal(StreamMessage{Type: "event", Channel: channel, Data: data, TS: now})
		if err != nil {
			h.logger.Error("Failed to encode stream event", zap.String("channel", channel), zap.Error(err))
			continue
		}
		payloads[channel] = payload
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		for channel := range client.channels {
			payload, ok := payloads[channel]
			if !ok {
				continue
			}
			select {
			case client.send <- payload:
			default:
				h.logger.Warn("Dropping slow websocket client")
				h.removeLocked(client)
			}
			if _, still := h.clients[client]; !still {
				break
			}
		}
	}
}

func (h *StreamHub) reply(client *streamClient, msg StreamMessage) {
	msg.TS = time.Now().UnixMilli()
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- payload:
	default:
		h.removeLocked(client)
	}
}

// removeLocked unregisters client and closes its send queue. Caller holds h.mu.
func (h *StreamHub) removeLocked(client *streamClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	metrics.WebsocketClients.Dec()
}

func (h *StreamHub) writePump(client *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
