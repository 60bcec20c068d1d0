package service

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/gorilla/websocket"
)

type WebSocketService struct {
	chat     *ChatService
	upgrader websocket.Upgrader
}

func NewWebSocketService(chat *ChatService) *WebSocketService {
	return &WebSocketService{
		chat: chat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins (adjust for production)
			},
		},
	}
}

func (s *WebSocketService) HandleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}
	conn.SetReadLimit(512 * 1024) // 512KB max message size
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		var req types.WebsocketRequest
		if err := json.Unmarshal(p, &req); err != nil {
			conn.WriteMessage(messageType, []byte("Error processing message"))
			log.Println("Unmarshal error:", err)
			continue
		}
		payloadBytes, err := json.Marshal(req.Payload)
		if err != nil {
			conn.WriteMessage(messageType, []byte("Error processing message"))
			log.Println("Marshal error:", err)
			continue
		}
		switch req.Type {
		case types.TypeWebsocketChat:
			var payload types.WebSocketChatPayload
			if err := json.Unmarshal(payloadBytes, &payload); err != nil {
				log.Println("Unmarshal error:", err)
				conn.WriteMessage(messageType, []byte("Error processing message"))
				continue
			}
			chatCtx, chatCancel := context.WithTimeout(ctx, 2*time.Minute)
			res, err := s.chat.Chat(chatCtx, payload.Messages, payload.Grounded, 0)
			chatCancel()
			if err != nil {
				log.Println("AI error:", err)
				errRes := types.WebSocketResponse{
					Type:    types.TypeWebsocketError,
					Payload: types.WebSocketChatResponse{Message: "Error processing message"},
				}
				conn.WriteJSON(errRes)
				continue
			}
			botMessage := types.WebSocketResponse{
				Type: types.TypeWebsocketChat,
				Payload: types.WebSocketChatResponse{
					Message:   res.Message,
					Citations: res.Citations,
				},
			}
			if err := conn.WriteJSON(botMessage); err != nil {
				log.Println("Write error:", err)
				continue
			}
		case types.TypeWebsocketPing:
			pongRes := types.WebSocketResponse{
				Type:    types.TypeWebsocketPong,
				Payload: nil,
			}
			if err := conn.WriteJSON(pongRes); err != nil {
				log.Println("Write error:", err)
			}
		default:
			log.Println("Invalid message type")
		}
	}
}

func (s *WebSocketService) Health() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}
