package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Hub gerencia as conexões WebSocket que acompanham o ranking
// Todo cliente conectado recebe todas as atualizações
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	conns    map[*websocket.Conn]*sync.Mutex // lock de escrita por conexão
	last     []byte                          // última atualização, enviada a quem conecta
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		conns:    make(map[*websocket.Conn]*sync.Mutex),
	}
}

// ServeHTTP gerencia o ciclo de vida de uma conexão WebSocket
// O cliente só pode mandar "ping"; o resto é ignorado
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	wmu := &sync.Mutex{}
	h.mu.Lock()
	h.conns[conn] = wmu
	last := h.last
	h.mu.Unlock()

	if last != nil {
		_ = write(conn, wmu, websocket.TextMessage, last)
	}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == "ping" {
			wmu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteJSON(ServerMsg{Type: "pong"})
			wmu.Unlock()
		}
	}

	// Remove a conexão ao desconectar
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// Broadcast envia a atualização (JSON pronto) para todos os clientes conectados
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	h.last = payload
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.conns))
	for c, m := range h.conns {
		targets[c] = m
	}
	h.mu.Unlock()

	for c, m := range targets {
		_ = write(c, m, websocket.TextMessage, payload)
	}
}

// Clients informa quantos clientes estão conectados
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func write(c *websocket.Conn, m *sync.Mutex, kind int, b []byte) error {
	m.Lock()
	defer m.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(kind, b)
}
