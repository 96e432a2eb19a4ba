// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/PersonaMarket/internal/services"
	"github.com/Corphon/PersonaMarket/internal/utils"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingInterval   = (wsPongWait * 9) / 10
	wsMaxMessageSize = 64 * 1024
	wsSendBuffer     = 16
)

// WebSocket 消息类型
const (
	wsTypePreview = "preview"
	wsTypePing    = "ping"
	wsTypePong    = "pong"
	wsTypeError   = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// previewMessage 客户端消息：type 之外的字段与 /api/persona/preview 请求体相同
type previewMessage struct {
	Type string `json:"type"`
	PersonaRequest
}

// wsClient 一个预览连接
type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	closed    int32 // 0=开启，1=关闭
	createdAt time.Time
}

func (client *wsClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		client.conn.Close()
	}
}

func (client *wsClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// SendMessage 非阻塞入队；队列满时丢弃
func (client *wsClient) SendMessage(message map[string]interface{}) bool {
	if client.IsClosed() {
		return false
	}
	msgBytes, err := json.Marshal(message)
	if err != nil {
		return false
	}
	select {
	case client.send <- msgBytes:
		return true
	default:
		return false
	}
}

func (client *wsClient) SendError(code, msg string) {
	client.SendMessage(map[string]interface{}{
		"type":      wsTypeError,
		"error":     APIError{Code: code, Message: msg},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// PreviewHub 管理实时人设预览连接。预览只使用模板，不调用生成后端。
type PreviewHub struct {
	persona *services.PersonaService
	logger  *utils.Logger
	clients map[*wsClient]struct{}
	mutex   sync.RWMutex
}

func NewPreviewHub(personaService *services.PersonaService, logger *utils.Logger) *PreviewHub {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &PreviewHub{
		persona: personaService,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeWS GET /ws/persona/preview
func (hub *PreviewHub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", utils.Fields{"error": err.Error()})
		return
	}

	client := &wsClient{
		conn:      conn,
		send:      make(chan []byte, wsSendBuffer),
		createdAt: time.Now(),
	}
	hub.register(client)

	go hub.writePump(client)
	hub.readPump(client)
}

// Count 当前活跃连接数
func (hub *PreviewHub) Count() int {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	return len(hub.clients)
}

// Shutdown 关闭全部连接
func (hub *PreviewHub) Shutdown() {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	for client := range hub.clients {
		client.Close()
	}
	hub.clients = make(map[*wsClient]struct{})
}

func (hub *PreviewHub) register(client *wsClient) {
	hub.mutex.Lock()
	hub.clients[client] = struct{}{}
	hub.mutex.Unlock()
	hub.logger.Debug("preview client connected", utils.Fields{"clients": hub.Count()})
}

func (hub *PreviewHub) unregister(client *wsClient) {
	hub.mutex.Lock()
	delete(hub.clients, client)
	hub.mutex.Unlock()
	client.Close()
	hub.logger.Debug("preview client disconnected", utils.Fields{
		"connected_for": time.Since(client.createdAt).Truncate(time.Second).String(),
	})
}

// readPump 读取预览请求，逐条同步应答
func (hub *PreviewHub) readPump(client *wsClient) {
	defer func() {
		hub.unregister(client)
		close(client.send)
	}()

	client.conn.SetReadLimit(wsMaxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				hub.logger.Warn("preview connection closed unexpectedly", utils.Fields{"error": err.Error()})
			}
			return
		}
		hub.handleMessage(client, data)
	}
}

func (hub *PreviewHub) handleMessage(client *wsClient, data []byte) {
	var msg previewMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		client.SendError(ErrorInvalidMessage, "invalid JSON message")
		return
	}

	switch msg.Type {
	case wsTypePing:
		client.SendMessage(map[string]interface{}{"type": wsTypePong, "timestamp": time.Now().Format(time.RFC3339)})
	case "", wsTypePreview:
		p := msg.PersonaInput.Parameters()
		client.SendMessage(map[string]interface{}{
			"type": wsTypePreview,
			"data": PreviewResponse{
				GeneratedText: hub.persona.PreviewBio(msg.EntityFacts, p),
				Fragments:     hub.persona.PreviewFragments(msg.EntityFacts, p),
				Persona:       p,
			},
			"timestamp": time.Now().Format(time.RFC3339),
		})
	default:
		client.SendError(ErrorInvalidMessage, "unknown message type: "+msg.Type)
	}
}

// writePump 发送队列中的消息并定期 ping
func (hub *PreviewHub) writePump(client *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
