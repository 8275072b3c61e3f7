// Package server is the demo relay. It moves opaque frames between
// connected clients and parks frames for offline recipients in the
// mailbox; it never inspects or transforms message content.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cloak_chat/internal/model"
	userRepo "cloak_chat/internal/repository/user"
	"cloak_chat/internal/service/mailbox"
	"cloak_chat/internal/utils/log"
)

type (
	HttpServer struct {
		addr string

		mu     sync.Mutex
		mapper map[string]*websocket.Conn

		userRepo *userRepo.Repo
		mailbox  *mailbox.Mailbox
	}
)

func NewHttpServer(addr string, userRepo *userRepo.Repo, mb *mailbox.Mailbox) *HttpServer {
	return &HttpServer{
		addr:     addr,
		mapper:   make(map[string]*websocket.Conn),
		userRepo: userRepo,
		mailbox:  mb,
	}
}

func (s *HttpServer) Run() error {
	r := mux.NewRouter()

	r.HandleFunc("/init", s.HandleInitWS()).Methods(http.MethodGet)
	r.HandleFunc("/users/{name}", s.GetUser()).Methods(http.MethodGet)
	return http.ListenAndServe(s.addr, r)
}

func (s *HttpServer) HandleInitWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userID")
		if userID == "" {
			http.Error(w, "userID cannot be empty", http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		_, dup := s.mapper[userID]
		s.mu.Unlock()
		if dup {
			http.Error(w, "duplicated userID", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "Failed to upgrade", http.StatusInternalServerError)
			return
		}

		s.mu.Lock()
		s.mapper[userID] = conn
		s.mu.Unlock()

		go s.relayFrames(userID, conn)
		if err := s.deliverQueued(userID, conn); err != nil {
			log.Error("deliver queued frames failed", zap.Error(err))
		}
	}
}

func (s *HttpServer) relayFrames(userID string, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("client web socket closed", zap.Error(err))
			s.mu.Lock()
			delete(s.mapper, userID)
			s.mu.Unlock()
			conn.Close()
			break
		}

		var frame model.WireMessage
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Error("unmarshal frame failed", zap.Error(err))
			continue
		}

		s.mu.Lock()
		peer, online := s.mapper[frame.To]
		s.mu.Unlock()

		if online {
			peer.WriteMessage(websocket.TextMessage, data)
		} else {
			if err := s.mailbox.Enqueue(context.TODO(), &frame); err != nil {
				log.Error("enqueue offline frame failed", zap.Error(err))
			}
		}
	}
}

// deliverQueued flushes frames that arrived while the user was offline.
func (s *HttpServer) deliverQueued(userID string, conn *websocket.Conn) error {
	frames, err := s.mailbox.Drain(context.TODO(), userID)
	if err != nil {
		return err
	}

	for _, frame := range frames {
		conn.WriteJSON(frame)
	}
	return nil
}

func (s *HttpServer) GetUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		vars := mux.Vars(r)
		name := vars["name"]
		log.Info("GetUser: ", zap.String("name", name))

		u, err := s.userRepo.GetByName(ctx, name)
		if err != nil {
			log.Error("user lookup failed", zap.Error(err))
			http.Error(w, "user lookup failed", http.StatusInternalServerError)
			return
		}

		if u == nil {
			http.Error(w, "user does not exist", http.StatusNotFound)
			return
		}

		data, err := json.Marshal(u)
		if err != nil {
			log.Error("marshal user failed", zap.Error(err))
			http.Error(w, "user lookup failed", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}
