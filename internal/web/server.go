// Package web serves a page with a virtual display and relays broadcast
// driver frames to browsers over a websocket.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/display"
)

//go:embed static/index.html
var indexHTML []byte

const (
	// WebsocketPath is the route browsers and the monitor connect to.
	WebsocketPath = "/ws"

	writeWait       = 5 * time.Second
	pingInterval    = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Options configure a Server.
type Options struct {
	Broadcast *display.Broadcast
	Log       *log.Logger
	// StaticDir, when set, serves index.html and /static/* from disk instead
	// of the built-in page.
	StaticDir string
	// MaxConnectsPerSec limits websocket upgrades per client IP; 0 disables
	// the limit.
	MaxConnectsPerSec float64
}

// Server is the HTTP front end for a broadcast driver.
type Server struct {
	opts     Options
	log      *log.Logger
	router   *gin.Engine
	upgrader websocket.Upgrader

	closeOnce sync.Once
	closing   chan struct{}
}

// New builds the router.
func New(opts Options) (*Server, error) {
	if opts.Broadcast == nil {
		return nil, fmt.Errorf("web: broadcast driver is required")
	}
	logger := opts.Log
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		opts: opts,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		closing: make(chan struct{}),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{WebsocketPath})))

	r.GET("/", s.handleIndex)
	if s.opts.StaticDir != "" {
		r.Static("/static", s.opts.StaticDir)
	}
	r.GET("/api/state", s.handleState)

	ws := r.Group(WebsocketPath)
	if s.opts.MaxConnectsPerSec > 0 {
		burst := int(math.Ceil(s.opts.MaxConnectsPerSec))
		ws.Use(RateLimitMiddleware(NewRateLimiter(rate.Limit(s.opts.MaxConnectsPerSec), burst)))
	}
	ws.GET("", s.handleWebsocket)
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and disconnects websocket clients.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("web server started", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("web: serve: %w", err)
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: serve: %w", err)
	}
	s.log.Info("web server stopped")
	return nil
}

// Close disconnects every websocket client. Safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

func (s *Server) handleIndex(c *gin.Context) {
	if s.opts.StaticDir != "" {
		c.File(filepath.Join(s.opts.StaticDir, "index.html"))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":       s.opts.Broadcast.Current(),
		"subscribers": s.opts.Broadcast.Subscribers(),
	})
}

// handleWebsocket relays every broadcast frame to one client. The client is
// disconnected when it falls too far behind.
func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.log.Warn("websocket upgrade failed", "remote", c.ClientIP(), "err", err)
		return
	}
	defer conn.Close()

	sub := s.opts.Broadcast.Subscribe(display.DefaultSubscriberBuffer)
	defer sub.Close()
	remote := c.ClientIP()
	s.log.Info("client connected", "remote", remote, "clients", s.opts.Broadcast.Subscribers())
	defer s.log.Info("client disconnected", "remote", remote)

	done := make(chan struct{})
	go s.readLoop(conn, remote, done)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				s.log.Warn("client too slow, dropped", "remote", remote)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Debug("write failed", "remote", remote, "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}

// readLoop drains client messages until the connection fails. Clients have
// nothing to say; messages are only logged.
func (s *Server) readLoop(conn *websocket.Conn, remote string, done chan<- struct{}) {
	defer close(done)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt == websocket.TextMessage && !json.Valid(data) {
			s.log.Warn("invalid JSON from client", "remote", remote)
			continue
		}
		s.log.Debug("client message", "remote", remote, "data", string(data))
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
