// Package stub implements the chat backend boundary consumed by the
// sync client: channel resolution, history fetch, message send with
// echo over the live channel, and the websocket endpoint itself. It
// backs the chatsyncd development server and the integration tests.
package stub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"

	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/domain"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// APIResponse is the common envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type conversation struct {
	channel  domain.Channel
	messages []domain.Message
	closed   bool
}

// Server holds in-memory conversations and the websocket hub.
type Server struct {
	hub *Hub

	mu     sync.Mutex
	byPair map[string]*conversation
	byID   map[string]*conversation
}

func NewServer() *Server {
	return &Server{
		hub:    NewHub(),
		byPair: make(map[string]*conversation),
		byID:   make(map[string]*conversation),
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/channels", s.ResolveChannel)
		api.POST("/channels/:id/close", s.CloseChannel)
		api.GET("/messages", s.GetMessages)
		api.POST("/messages", s.SendMessage)
	}

	r.GET("/ws", s.HandleWebSocket)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

type resolveChannelRequest struct {
	ParticipantA string `json:"participantA"`
	ParticipantB string `json:"participantB"`
}

// ResolveChannel returns the channel for a pair of identities, creating
// it on first access. Revisiting the same pair returns the same channel.
func (s *Server) ResolveChannel(c *gin.Context) {
	var req resolveChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ParticipantA == "" || req.ParticipantB == "" {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "participantA and participantB are required"})
		return
	}

	conv := s.getOrCreate(req.ParticipantA, req.ParticipantB)
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: conv.channel})
}

// CloseChannel marks a conversation completed; further sends are
// rejected with a status marker.
func (s *Server) CloseChannel(c *gin.Context) {
	s.mu.Lock()
	conv, ok := s.byID[c.Param("id")]
	if ok {
		conv.closed = true
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, APIResponse{Success: false, Error: "channel not found"})
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true})
}

// GetMessages returns the history snapshot for a pair or channel.
func (s *Server) GetMessages(c *gin.Context) {
	channelID := c.Query("channel")
	user := c.Query("user")
	partner := c.Query("partner")

	s.mu.Lock()
	var conv *conversation
	if channelID != "" {
		conv = s.byID[channelID]
	} else if user != "" && partner != "" {
		conv = s.byPair[pairKey(user, partner)]
	}
	var messages []domain.Message
	if conv != nil {
		messages = append(messages, conv.messages...)
	}
	s.mu.Unlock()

	if messages == nil {
		messages = []domain.Message{}
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: gin.H{"messages": messages}})
}

type sendRequest struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	ChannelID  string `json:"channelId"`
	Text       string `json:"text"`
}

// SendMessage accepts a message over the request channel, persists it
// and echoes it to every live connection on the channel (the sender's
// own included).
func (s *Server) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SenderID == "" || req.ReceiverID == "" || req.Text == "" {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "senderId, receiverId and text are required"})
		return
	}

	s.mu.Lock()
	var conv *conversation
	if req.ChannelID != "" {
		conv = s.byID[req.ChannelID]
	}
	if conv == nil {
		s.mu.Unlock()
		conv = s.getOrCreate(req.SenderID, req.ReceiverID)
		s.mu.Lock()
	}

	if conv.closed {
		s.mu.Unlock()
		c.JSON(http.StatusOK, APIResponse{Success: true, Data: gin.H{"status": "conversation_closed"}})
		return
	}

	msg := domain.Message{
		ID:         ksuid.New().String(),
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		ChannelID:  conv.channel.ID,
		Text:       req.Text,
		CreatedAt:  time.Now().UTC(),
	}
	conv.messages = append(conv.messages, msg)
	channelID := conv.channel.ID
	s.mu.Unlock()

	data, err := json.Marshal(msg)
	if err == nil {
		s.hub.Broadcast(channelID, data)
	}

	l := log.Ctx(c.Request.Context())
	l.Debug().
		Str(log.FieldChannelID, channelID).
		Str(log.FieldMessageID, msg.ID).
		Msg("message accepted")

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: gin.H{"status": "sent"}})
}

// HandleWebSocket upgrades the connection and subscribes it to the
// requested channel. Inbound {"type":"ping"} frames are answered with
// {"type":"pong"}; everything else from clients is ignored since sends
// go over the REST endpoint.
func (s *Server) HandleWebSocket(c *gin.Context) {
	channelID := c.Query("channel")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "channel is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	cl := NewClient(s.hub, conn, channelID)
	s.hub.Join(cl)

	go cl.WritePump()
	go cl.ReadPump(s.handleFrame)
}

func (s *Server) handleFrame(cl *Client, data []byte) {
	var base domain.BaseFrame
	if err := json.Unmarshal(data, &base); err != nil {
		return
	}
	if base.Type == domain.FrameTypePing {
		pong, _ := json.Marshal(domain.PongFrame{Type: domain.FrameTypePong})
		cl.Send(pong)
	}
}

func (s *Server) getOrCreate(a, b string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(a, b)
	if conv, ok := s.byPair[key]; ok {
		return conv
	}

	conv := &conversation{
		channel: domain.Channel{
			ID:           uuid.New().String(),
			ParticipantA: a,
			ParticipantB: b,
		},
	}
	s.byPair[key] = conv
	s.byID[conv.channel.ID] = conv
	return conv
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
