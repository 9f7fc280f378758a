package sink

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"libdb.so/glowvis/internal/led"
)

const websocketWriteTimeout = time.Second

// WebSocket broadcasts every frame as a binary message of r, g, b bytes to
// all clients connected to /ws. It is meant for previewing effects without
// hardware.
type WebSocket struct {
	logger   *slog.Logger
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

var _ Writer = (*WebSocket)(nil)

// ListenWebSocket starts serving the preview on the given address.
func ListenWebSocket(address string, logger *slog.Logger) (*WebSocket, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %q", address)
	}

	ws := &WebSocket{
		logger:   logger,
		listener: l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.handle)
	ws.server = &http.Server{Handler: mux}

	go func() {
		if err := ws.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("websocket server stopped", "error", err)
		}
	}()

	logger.Debug("websocket sink listening", "addr", l.Addr())
	return ws, nil
}

// Addr returns the address the server listens on.
func (ws *WebSocket) Addr() net.Addr {
	return ws.listener.Addr()
}

func (ws *WebSocket) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	ws.mu.Lock()
	ws.clients[conn] = struct{}{}
	ws.mu.Unlock()

	ws.logger.Debug("websocket client connected", "remote", conn.RemoteAddr())

	// Clients never send anything meaningful; reading only detects when
	// they go away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				ws.drop(conn)
				return
			}
		}
	}()
}

func (ws *WebSocket) drop(conn *websocket.Conn) {
	ws.mu.Lock()
	delete(ws.clients, conn)
	ws.mu.Unlock()
	conn.Close()
}

func (ws *WebSocket) WriteFrame(_ context.Context, leds led.LEDs) error {
	pix := leds.AsPixels()

	ws.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(ws.clients))
	for conn := range ws.clients {
		clients = append(clients, conn)
	}
	ws.mu.Unlock()

	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(websocketWriteTimeout))
		if err := conn.WriteMessage(websocket.BinaryMessage, pix); err != nil {
			ws.logger.Debug(
				"dropping websocket client",
				"remote", conn.RemoteAddr(),
				"error", err)
			ws.drop(conn)
		}
	}

	return nil
}

func (ws *WebSocket) Close() error {
	ws.mu.Lock()
	for conn := range ws.clients {
		conn.Close()
	}
	ws.clients = make(map[*websocket.Conn]struct{})
	ws.mu.Unlock()

	return ws.server.Close()
}
