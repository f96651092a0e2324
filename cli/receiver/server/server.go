package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/alitagps/tk103/cli/receiver/queue"
	"github.com/alitagps/tk103/cli/receiver/types"
	"github.com/alitagps/tk103/libs/tk103"
)

const (
	// A login burst with a couple of feedback segments fits well under this,
	// so one read usually completes the frame.
	initialFrameCap = 190

	// frameHeaderLen is the minimum length carrying device id and command.
	frameHeaderLen = tk103.CommandEnd

	cmdStatus   = "STATUS"
	cmdShutdown = "SHUTDOWN"
	cmdPing     = "PING"

	pongResponse     = "PONG"
	shutdownResponse = "SHUTTING DOWN"
)

// Server accepts tracker connections and runs one exchange per connection:
// a single frame in, at most one response out, then close. Data frames for
// the login command are pushed onto the request queue before the ack goes
// out, so a full queue throttles device ingest.
type Server struct {
	addr     string
	ttl      time.Duration
	requests *queue.Requests
	events   *queue.Events

	listener  net.Listener
	startedAt time.Time

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

func New(addr string, ttl time.Duration, requests *queue.Requests, events *queue.Events) *Server {
	return &Server{
		addr:     addr,
		ttl:      ttl,
		requests: requests,
		events:   events,
		shutdown: make(chan struct{}),
	}
}

// Shutdown is closed when a device or operator sends the SHUTDOWN control
// command. The composition root listens on it next to OS signals.
func (s *Server) Shutdown() <-chan struct{} {
	return s.shutdown
}

// Listen binds the listen socket. Run calls it when needed; calling it
// first lets the caller learn the bound address before serving starts.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = l
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.startedAt = time.Now()

	log.Infof("Server started on %s", s.listener.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Info("Server stopped accepting connections")
				return nil
			}
			log.WithField("err", err).Error("Failed to accept connection")
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) Stop() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			log.WithField("ip", conn.RemoteAddr()).Errorf("Connection handler panic: %v", r)
			msg := types.Message{
				Type:      types.CriticalServerFailure,
				Text:      fmt.Sprintf("panic while serving %s: %v", conn.RemoteAddr(), r),
				Timestamp: time.Now(),
			}
			if err := s.events.Put(ctx, msg); err != nil {
				log.WithField("err", err).Error("Failed to report connection failure")
			}
		}
	}()

	log.WithField("ip", conn.RemoteAddr()).Debug("Connection established")

	buf := make([]byte, 0, initialFrameCap)
	chunk := make([]byte, initialFrameCap)
	for {
		if s.ttl > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.ttl))
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.WithField("ip", conn.RemoteAddr()).Warn("Read timeout")
			} else {
				log.WithField("ip", conn.RemoteAddr()).Debug("Client closed connection")
			}
			return
		}

		response, done := s.classify(ctx, string(buf))
		if !done {
			continue
		}
		if response != "" {
			if _, err := conn.Write([]byte(response)); err != nil {
				log.WithField("err", err).Error("Failed to write response")
			}
		}
		return
	}
}

// classify decides what the accumulated text is and what to answer. The
// second return value is false while the frame is still too short to carry
// a command code; the caller keeps reading in that case.
func (s *Server) classify(ctx context.Context, frame string) (string, bool) {
	switch strings.TrimSpace(frame) {
	case cmdStatus:
		return s.statusLine(), true
	case cmdShutdown:
		log.Warn("Shutdown requested over the wire")
		s.shutdownOnce.Do(func() { close(s.shutdown) })
		return shutdownResponse, true
	case cmdPing:
		return pongResponse, true
	}

	if len(frame) < frameHeaderLen {
		return "", false
	}

	deviceID := frame[tk103.DeviceIDStart:tk103.DeviceIDEnd]
	command := frame[tk103.CommandStart:tk103.CommandEnd]

	switch command {
	case tk103.CmdLogin:
		log.WithField("device", deviceID).Info("Login received")
		if err := s.requests.Put(ctx, frame); err != nil {
			log.WithField("err", err).Warn("Dropping login frame, server is shutting down")
			return "", true
		}
		return tk103.LoginResponse(deviceID), true
	case tk103.CmdHandshakeSignal:
		log.WithField("device", deviceID).Debug("Handshake received")
		return tk103.HandshakeResponse(deviceID), true
	case tk103.CmdContinuousFeedback:
		log.WithField("device", deviceID).Debug("Continuous feedback received")
		return tk103.FeedbackResponse, true
	default:
		log.WithFields(log.Fields{"device": deviceID, "command": command}).Warn("Unrecognized command")
		return "", true
	}
}

func (s *Server) statusLine() string {
	return fmt.Sprintf("OK uptime=%s requests=%d/%d events=%d/%d",
		time.Since(s.startedAt).Round(time.Second),
		s.requests.Len(), s.requests.Cap(),
		s.events.Len(), s.events.Cap())
}
