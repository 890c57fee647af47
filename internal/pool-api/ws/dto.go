package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: ping
type ClientMsg struct {
	Type string `json:"type"`
}

// ServerMsg é a resposta de controle enviada ao cliente
type ServerMsg struct {
	Type string `json:"type"` // pong
}
