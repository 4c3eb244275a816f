package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/backdrop/internal/runtimepath"
)

// Handler is the daemon side of the protocol.
type Handler interface {
	Reload() error
	Status() StatusData
	Monitors() []MonitorInfo
	Backdrops() []BackdropInfo
	Cycle(target TargetPayload) error
	Invalidate(target TargetPayload) error
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	handler      Handler
	startTime    time.Time
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server on the default socket path.
func NewServer(handler Handler) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	return NewServerAt(socketPath, handler), nil
}

// NewServerAt creates a new IPC server listening on socketPath.
func NewServerAt(socketPath string, handler Handler) *Server {
	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		handler:    handler,
		startTime:  time.Now(),
	}
}

// SocketPath returns the socket the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("IPC server listening on %s", s.socketPath)

	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			log.Printf("IPC accept error: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		log.Printf("IPC read error: %v", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandReload:
		return s.handleReload()
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandGetMonitors:
		return s.handleGetMonitors()
	case CommandListBackdrops:
		return s.handleListBackdrops()
	case CommandCycle:
		return s.handleTarget(req, s.handler.Cycle)
	case CommandInvalidate:
		return s.handleTarget(req, s.handler.Invalidate)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleReload() *Response {
	log.Println("IPC: Received RELOAD command")

	if err := s.handler.Reload(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}

	log.Println("IPC: Config reloaded successfully")

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleGetStatus() *Response {
	status := s.handler.Status()
	status.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
	status.DaemonRunning = true

	resp, _ := NewOKResponse(status)
	return resp
}

func (s *Server) handleGetMonitors() *Response {
	resp, _ := NewOKResponse(MonitorsData{Monitors: s.handler.Monitors()})
	return resp
}

func (s *Server) handleListBackdrops() *Response {
	resp, _ := NewOKResponse(BackdropsData{Backdrops: s.handler.Backdrops()})
	return resp
}

func (s *Server) handleTarget(req *Request, fn func(TargetPayload) error) *Response {
	var target TargetPayload
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &target); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid %s payload: %v", req.Command, err))
		}
	}

	log.Printf("IPC: %s monitor=%q", req.Command, target.Monitor)
	if err := fn(target); err != nil {
		return NewErrorResponse(fmt.Sprintf("%s failed: %v", req.Command, err))
	}

	resp, _ := NewOKResponse(nil)
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}
