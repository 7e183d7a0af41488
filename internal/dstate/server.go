// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The gxemon authors

package dstate

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CommandFunc forwards a named command to the driver. It must serialize
// execution with the poll loop; the server never talks to the device.
type CommandFunc func(name string) error

// Server publishes store snapshots over HTTP/JSON and WebSocket, and
// accepts named commands from WebSocket clients.
type Server struct {
	store   *Store
	addr    string
	instcmd CommandFunc

	clients   map[*wsClient]struct{}
	clientsMu sync.Mutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// commandRequest is the single message type accepted from clients.
type commandRequest struct {
	Command string `json:"command"`
}

type commandReply struct {
	Command string `json:"command"`
	Result  string `json:"result"`
	Error   string `json:"error,omitempty"`
}

// NewServer creates a publication server for the store. instcmd may be nil
// if the host accepts no commands.
func NewServer(store *Store, addr string, instcmd CommandFunc) *Server {
	return &Server{
		store:   store,
		addr:    addr,
		instcmd: instcmd,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/ws", s.handleWS)

	srv := &http.Server{Addr: s.addr, Handler: mux}

	// Push a snapshot to every client after each refresh mark.
	snaps, cancel := s.store.Subscribe()
	defer cancel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snaps:
				s.broadcast(snap)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.store.Snapshot()); err != nil {
		log.Printf("[server] state encode: %v", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 8)}
	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.clientsMu.Unlock()

	// Greet with the current snapshot so a client need not wait a cycle.
	if data, err := json.Marshal(s.store.Snapshot()); err == nil {
		client.send <- data
	}

	go s.writeLoop(client)
	s.readLoop(client)
}

func (s *Server) writeLoop(c *wsClient) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (s *Server) readLoop(c *wsClient) {
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
		close(c.send)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req commandRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Command == "" {
			continue
		}
		s.dispatch(c, req.Command)
	}
}

func (s *Server) dispatch(c *wsClient, name string) {
	rep := commandReply{Command: name, Result: "ok"}
	switch {
	case s.instcmd == nil:
		rep.Result = "failed"
		rep.Error = "commands not accepted"
	case !s.store.HasCommand(name):
		rep.Result = "unknown"
	default:
		if err := s.instcmd(name); err != nil {
			rep.Result = "failed"
			rep.Error = err.Error()
		}
	}

	data, err := json.Marshal(rep)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[ws] client send queue full, dropping command reply")
	}
}

func (s *Server) broadcast(snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[ws] snapshot encode: %v", err)
		return
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// Slow client: skip this snapshot rather than block.
		}
	}
}
