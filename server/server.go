// Package server exposes the title suggester and the menu chatbot over a
// websocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xhad/promptlab/internal/models"
	"github.com/xhad/promptlab/pkg/menuchat"
	"github.com/xhad/promptlab/pkg/suggest"
	"k8s.io/klog/v2"
)

// Message types.
const (
	TypeSuggest     = "suggest"
	TypeChat        = "chat"
	TypeStatus      = "status"
	TypeSuggestions = "suggestions"
	TypeResponse    = "response"
	TypeError       = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Message struct {
	ID      string      `json:"id,omitempty"`
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// SuggestionData is the payload of a suggestions message.
type SuggestionData struct {
	Similar []string `json:"similar"`
	Titles  []string `json:"titles"`
}

// ChatData is the payload of a chat response message.
type ChatData struct {
	FoodRelated bool   `json:"food_related"`
	OnMenu      bool   `json:"on_menu"`
	Reasoning   string `json:"reasoning,omitempty"`
	Extracted   string `json:"extracted,omitempty"`
	Refined     string `json:"refined,omitempty"`
}

type Suggester interface {
	Suggest(ctx context.Context, title string) (*suggest.Suggestion, error)
}

type Chatbot interface {
	Run(ctx context.Context, query string) (*menuchat.Result, error)
}

type WSServer struct {
	suggester Suggester
	chatbot   Chatbot
	// Verbose adds every chain stage to chat responses.
	Verbose bool
}

// NewWSServer serves whichever of suggester and chatbot is non-nil.
func NewWSServer(suggester Suggester, chatbot Chatbot) *WSServer {
	return &WSServer{suggester: suggester, chatbot: chatbot}
}

// Handler routes /ws and /health.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(ctx context.Context, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		klog.FromContext(ctx).Error(err, "Error sending message", "id", msg.ID, "type", msg.Type)
	}
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := klog.FromContext(r.Context())
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error(err, "WebSocket upgrade failed")
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ctx = klog.NewContext(ctx, logger.WithValues("remote", r.RemoteAddr))

	c := &conn{ws: ws}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.V(1).Info("Connection closed", "err", err)
			}
			cancel()
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(ctx, Message{Type: TypeError, Content: fmt.Sprintf("invalid message: %v", err)})
			continue
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}

		wg.Add(1)
		go func(msg Message) {
			defer wg.Done()
			s.handleMessage(ctx, c, msg)
		}(msg)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, c *conn, msg Message) {
	logger := klog.FromContext(ctx).WithValues("id", msg.ID, "type", msg.Type)
	ctx = klog.NewContext(ctx, logger)

	reply := func(msgType, content string, data interface{}) {
		c.send(ctx, Message{ID: msg.ID, Type: msgType, Content: content, Data: data})
	}

	content := strings.TrimSpace(msg.Content)
	if content == "" {
		reply(TypeError, "content is empty", nil)
		return
	}

	switch msg.Type {
	case TypeSuggest:
		if s.suggester == nil {
			reply(TypeError, "title suggestions are not available", nil)
			return
		}
		reply(TypeStatus, "Searching for similar titles", nil)

		suggestion, err := s.suggester.Suggest(ctx, content)
		if err != nil {
			logger.Error(err, "Suggest failed")
			reply(TypeError, fmt.Sprintf("Error: %v", err), nil)
			return
		}
		reply(TypeSuggestions, strings.Join(suggestion.Titles, "\n"), SuggestionData{
			Similar: models.Titles(suggestion.Similar),
			Titles:  suggestion.Titles,
		})

	case TypeChat:
		if s.chatbot == nil {
			reply(TypeError, "menu chat is not available", nil)
			return
		}
		reply(TypeStatus, "Thinking", nil)

		res, err := s.chatbot.Run(ctx, content)
		if err != nil {
			logger.Error(err, "Chat failed")
			reply(TypeError, fmt.Sprintf("Error: %v", err), nil)
			return
		}
		data := ChatData{FoodRelated: res.Assessment.FoodRelated, OnMenu: res.Assessment.OnMenu}
		if s.Verbose {
			data.Reasoning, data.Extracted, data.Refined = res.Reasoning, res.Extracted, res.Refined
		}
		reply(TypeResponse, res.Final, data)

	default:
		reply(TypeError, fmt.Sprintf("unknown message type %q", msg.Type), nil)
	}
}
