package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Tipos de mensagem enviados pelo canal push
const (
	MessageItemsUpdate       = "items_update"
	MessageTransactionAdded  = "transaction_added"
	MessageScannerModeUpdate = "scanner_mode_update"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Message é o envelope {type, data} enviado aos clientes
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client é uma conexão push aberta
type Client struct {
	id   string
	hub  *Broadcaster
	conn *websocket.Conn
	send chan []byte
}

// Broadcaster mantém o conjunto de conexões e distribui as mensagens (at-most-once, sem replay)
type Broadcaster struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	sendBuffer int

	connectedClients metric.Int64UpDownCounter
}

// NewBroadcaster cria o broadcaster; sendBuffer limita as mensagens pendentes por cliente
func NewBroadcaster(sendBuffer int) *Broadcaster {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	connectedClients, err := otel.Meter("inventory-service").Int64UpDownCounter("inventory.ws.clients",
		metric.WithDescription("Open push channel connections"))
	if err != nil {
		log.Printf("Error creating websocket gauge: %v", err)
		connectedClients = noop.Int64UpDownCounter{}
	}
	return &Broadcaster{
		clients:          make(map[*Client]struct{}),
		sendBuffer:       sendBuffer,
		connectedClients: connectedClients,
	}
}

func (b *Broadcaster) register(c *Client) {
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	b.connectedClients.Add(context.Background(), 1)
	log.Printf("🔌 [WS] Client connected: %s", c.id)
}

func (b *Broadcaster) unregister(c *Client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	if ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()

	if ok {
		b.connectedClients.Add(context.Background(), -1)
		log.Printf("🔌 [WS] Client disconnected: %s", c.id)
	}
}

// ClientCount retorna quantas conexões estão abertas
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast envia a mensagem a todos os clientes conectados agora.
// Um cliente com o buffer cheio perde a mensagem.
func (b *Broadcaster) Broadcast(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("❌ [WS] Failed to encode %s message: %v", msg.Type, err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		select {
		case c.send <- payload:
		default:
			log.Printf("⚠️ [WS] Dropping %s for slow client %s", msg.Type, c.id)
		}
	}
}

// Close desconecta todos os clientes
func (b *Broadcaster) Close() {
	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		b.unregister(c)
	}
}

// HandleWebSocket aceita uma conexão push e mantém o ciclo de vida dela
func (b *Broadcaster) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ [WS] Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		id:   uuid.New().String(),
		hub:  b,
		conn: conn,
		send: make(chan []byte, b.sendBuffer),
	}
	b.register(client)

	go client.writePump()
	go client.readPump()
}

// readPump só existe para detectar a desconexão; mensagens do cliente são ignoradas
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ [WS] Client %s closed unexpectedly: %v", c.id, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
