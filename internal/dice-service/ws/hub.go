package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/dice/emitter"
)

// AllPlayers assina o feed de todas as apostas
const AllPlayers = "*"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Player: base58 ou "*"; obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type   string `json:"type"`
	Player string `json:"player"`
}

// DefaultWriteTimeout: cliente que não consome uma mensagem nesse prazo é desconectado
const DefaultWriteTimeout = 5 * time.Second

// conn serializa as escritas; gorilla/websocket não aceita writers concorrentes
type conn struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	timeout time.Duration
}

func (c *conn) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas por jogador
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// player -> set of connections
	subs map[string]map[*conn]struct{}

	// WriteTimeout vale para conexões abertas depois de alterado
	WriteTimeout time.Duration
}

// NewHub cria o Hub com política de origem customizada
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:          log,
		upgrader:     websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:         make(map[string]map[*conn]struct{}),
		WriteTimeout: DefaultWriteTimeout,
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: wsConn, timeout: h.WriteTimeout}
	defer h.drop(c)

	for {
		var msg ClientMsg
		if err := wsConn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.Player == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.Player]; !ok {
				h.subs[msg.Player] = make(map[*conn]struct{})
			}
			h.subs[msg.Player][c] = struct{}{}
			h.mu.Unlock()
			_ = c.write([]byte(`{"type":"subscribed"}`))
		case "unsubscribe":
			h.remove(msg.Player, c)
		case "ping":
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}
}

// drop remove a conexão de todas as assinaturas e fecha o socket; o ReadJSON
// pendente em HandleWS retorna erro e encerra o loop
func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	for player, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, player)
		}
	}
	h.mu.Unlock()
	_ = c.ws.Close()
}

func (h *Hub) remove(player string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[player]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, player)
		}
	}
}

// Broadcast envia para os inscritos no jogador e no feed geral
func (h *Hub) Broadcast(update emitter.WSUpdate) {
	h.mu.RLock()
	targets := make(map[*conn]struct{})
	for _, key := range []string{update.Player, AllPlayers} {
		for c := range h.subs[key] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		return
	}
	for c := range targets {
		if err := c.write(b); err != nil {
			h.log.Debug("ws client dropped", zap.String("player", update.Player), zap.Error(err))
			h.drop(c)
		}
	}
}

// StartRedisSubscriber escuta o canal Pub/Sub e repassa as atualizações ao Hub
func StartRedisSubscriber(ctx context.Context, r *redis.Client, hub *Hub) {
	sub := r.Subscribe(ctx, emitter.ChannelBetsBroadcast)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var upd emitter.WSUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
					hub.log.Warn("ws subscriber unmarshal", zap.Error(err))
					continue
				}
				hub.Broadcast(upd)
			}
		}
	}()
}
