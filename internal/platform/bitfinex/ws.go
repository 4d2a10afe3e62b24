package bitfinex

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chris-ch/coinarb/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// SnapshotHandler is called when a full book snapshot arrives for a symbol.
type SnapshotHandler func(symbol string, msg DataMessage)

// DeltaHandler is called for every incremental book update.
type DeltaHandler func(symbol string, msg DataMessage)

// WSClient is a WebSocket client for the Bitfinex book feed. It manages the
// connection lifecycle, book subscriptions and the channel-to-symbol mapping,
// and dispatches parsed messages to registered handlers.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// Book symbols to restore on reconnect.
	symbols []string

	// Channel id to symbol, rebuilt on every (re)subscribe.
	channels map[int64]string

	snapshotHandlers []SnapshotHandler
	deltaHandlers    []DeltaHandler
	handlerMu        sync.RWMutex

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a client for the given WebSocket endpoint,
// e.g. "wss://api-pub.bitfinex.com/ws".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL:    wsURL,
		channels: make(map[int64]string),
		done:     make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and restores any previous
// book subscriptions.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("bitfinex/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("bitfinex/ws: connect: %w", err)
	}

	w.conn = conn
	w.channels = make(map[int64]string)

	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop()
	go w.pingLoop()

	for _, symbol := range w.symbols {
		if err := w.sendSubscribe(symbol); err != nil {
			return fmt.Errorf("bitfinex/ws: restore subscription %s: %w", symbol, err)
		}
	}

	return nil
}

// SubscribeBook subscribes to the realtime book channel for each symbol.
func (w *WSClient) SubscribeBook(ctx context.Context, symbols []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("bitfinex/ws: not connected")
	}

	for _, symbol := range symbols {
		if err := w.sendSubscribe(symbol); err != nil {
			return fmt.Errorf("bitfinex/ws: subscribe %s: %w", symbol, err)
		}
		w.symbols = append(w.symbols, symbol)
	}

	return nil
}

// Close shuts down the WebSocket connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// OnSnapshot registers a handler called for every full book snapshot.
func (w *WSClient) OnSnapshot(handler SnapshotHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.snapshotHandlers = append(w.snapshotHandlers, handler)
}

// OnDelta registers a handler called for every incremental book update.
func (w *WSClient) OnDelta(handler DeltaHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.deltaHandlers = append(w.deltaHandlers, handler)
}

// sendSubscribe sends one book subscription. Caller must hold w.mu.
func (w *WSClient) sendSubscribe(symbol string) error {
	cmd := map[string]string{
		"event":   "subscribe",
		"channel": "book",
		"symbol":  symbol,
		"prec":    "P0", // precision level
		"freq":    "F0", // realtime
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads messages from the WebSocket and dispatches
// them. On disconnect it attempts to reconnect with exponential backoff.
func (w *WSClient) readLoop() {
	defer func() {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			w.reconnect()
			return // readLoop is restarted by reconnect -> Connect
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic ping messages to keep the WebSocket alive.
func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage routes one raw message: JSON objects carry protocol events,
// arrays carry book data.
func (w *WSClient) handleMessage(raw []byte) {
	if len(raw) > 0 && raw[0] == '{' {
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return // Silently drop unparseable messages.
		}
		if ev.Event == "subscribed" && ev.Channel == "book" {
			w.mu.Lock()
			w.channels[ev.ChanID] = ev.Pair
			w.mu.Unlock()
		}
		return
	}

	msg, err := ParseDataMessage(raw)
	if err != nil {
		return
	}
	if msg.Kind == KindHeartbeat {
		return
	}

	w.mu.RLock()
	symbol, ok := w.channels[msg.ChanID]
	w.mu.RUnlock()
	if !ok {
		return
	}

	switch msg.Kind {
	case KindSnapshot:
		w.handlerMu.RLock()
		handlers := w.snapshotHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(symbol, msg)
		}
	case KindDelta:
		w.handlerMu.RLock()
		handlers := w.deltaHandlers
		w.handlerMu.RUnlock()
		for _, h := range handlers {
			h(symbol, msg)
		}
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. It blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
