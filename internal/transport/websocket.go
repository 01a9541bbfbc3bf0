// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	applog "spectra/internal/log"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("transport: closed")

const writeTimeout = 2 * time.Second

// WebSocketTransport broadcasts every message as JSON to all clients
// connected on /ws.
type WebSocketTransport struct {
	listener  net.Listener
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	server    *http.Server
}

// NewWebSocketTransport listens on addr and starts serving. Use port 0 to
// pick a free port; Addr reports the bound address.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	wst := &WebSocketTransport{
		listener: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Monitoring clients are local tools.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
		done:      make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		applog.Infof("WebSocketTransport: Starting WebSocket server on %s", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()

	return wst, nil
}

// Addr returns the address the server listens on.
func (wst *WebSocketTransport) Addr() string {
	return wst.listener.Addr().String()
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client connected, total: %d", total)

	// Clients only listen; the first read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteJSON(data); err != nil {
					applog.Warnf("WebSocketTransport: Error sending to client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send queues data for broadcast. When the queue is full the message is
// dropped; monitoring data is periodic and the next one supersedes it.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	select {
	case wst.broadcast <- data:
	default:
		applog.Debugf("WebSocketTransport: queue full, dropping message")
	}
	return nil
}

// Close shuts down the server and disconnects every client.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)
		err = wst.server.Close()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		clear(wst.clients)
		wst.clientsMu.Unlock()

		wst.wg.Wait()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
