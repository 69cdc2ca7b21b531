package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/nickyhof/SliceDB"
	"github.com/nickyhof/SliceDB/core"
	"github.com/nickyhof/SliceDB/db"
)

// Server is a TCP server that runs each incoming statement in its own
// session scope against a SliceDB instance.
type Server struct {
	listener   net.Listener
	instance   *SliceDB.Instance
	identity   core.Identity
	authConfig *AuthConfig
	tlsEnabled bool
	mu         sync.Mutex
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewServer creates a server that attributes all work to the given
// default identity.
func NewServer(instance *SliceDB.Instance, identity core.Identity) *Server {
	return &Server{
		instance: instance,
		identity: identity,
		done:     make(chan struct{}),
	}
}

// NewServerWithAuth creates a server that requires clients to
// authenticate before queries are accepted.
func NewServerWithAuth(instance *SliceDB.Instance, authConfig *AuthConfig) *Server {
	return &Server{
		instance: instance,
		identity: core.Identity{
			Name:  "SliceDB Server",
			Email: "server@slicedb.local",
		},
		authConfig: authConfig,
		done:       make(chan struct{}),
	}
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	log.Printf("Server listening on %s", addr)

	go s.acceptLoop()
	return nil
}

// StartTLS begins listening with TLS using the given certificate pair.
func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	listener, err := tls.Listen("tcp", addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("failed to start TLS server: %w", err)
	}
	s.listener = listener
	s.tlsEnabled = true

	log.Printf("TLS server listening on %s", addr)

	go s.acceptLoop()
	return nil
}

// TLSEnabled reports whether the server was started with TLS.
func (s *Server) TLSEnabled() bool {
	return s.tlsEnabled
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Printf("Accept error: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	log.Printf("Client connected: %s", conn.RemoteAddr())

	reader := bufio.NewReader(conn)
	state := &ConnectionState{}

	for {
		select {
		case <-s.done:
			return
		default:
		}

		// Read until newline (one query per line)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				log.Printf("Read error from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}

		// Handle special commands
		if strings.ToLower(query) == "quit" || strings.ToLower(query) == "exit" {
			log.Printf("Client disconnected: %s", conn.RemoteAddr())
			return
		}

		var response Response
		switch {
		case strings.HasPrefix(strings.ToUpper(query), "AUTH "):
			response = s.handleAuth(query, state)

		case s.authRequired() && !state.IsAuthenticated():
			response = Response{
				Success: false,
				Error:   "authentication required",
			}

		default:
			response = s.executeQuery(query)
		}

		// Send response
		data, err := EncodeResponse(response)
		if err != nil {
			log.Printf("Failed to encode response: %v", err)
			continue
		}

		_, err = conn.Write(data)
		if err != nil {
			log.Printf("Write error to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func (s *Server) authRequired() bool {
	return s.authConfig != nil && s.authConfig.Enabled
}

// executeQuery runs one statement in its own session scope. The mutex
// serializes scopes so only one connection holds the database at a time.
func (s *Server) executeQuery(query string) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	var response Response

	err := s.instance.Session(context.Background(), func(session *db.Session) error {
		if isQuery(query) {
			frame, err := session.QueryFrame(query)
			if err != nil {
				return err
			}

			qr := QueryResponse{
				Columns:     frame.ColumnNames(),
				Data:        frame.StringRows(),
				RecordsRead: frame.Len(),
				TimeMs:      float64(time.Since(start).Microseconds()) / 1000,
			}
			data, _ := json.Marshal(qr)
			response = Response{
				Success: true,
				Type:    "query",
				Result:  data,
			}
			return nil
		}

		if err := session.Exec(query); err != nil {
			return err
		}

		er := ExecResponse{
			TimeMs: float64(time.Since(start).Microseconds()) / 1000,
		}
		data, _ := json.Marshal(er)
		response = Response{
			Success: true,
			Type:    "exec",
			Result:  data,
		}
		return nil
	})
	if err != nil {
		return Response{
			Success: false,
			Error:   err.Error(),
		}
	}

	return response
}

// isQuery reports whether a statement produces a result set.
func isQuery(sql string) bool {
	head := strings.ToUpper(strings.TrimSpace(sql))
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "PRAGMA", "FROM", "SUMMARIZE", "EXPLAIN"} {
		if strings.HasPrefix(head, prefix) {
			return true
		}
	}
	return false
}
