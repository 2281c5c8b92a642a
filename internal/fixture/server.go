package fixture

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/five82/pipeview/internal/pipeline"
)

const (
	defaultApprover = "pipeview"
	pingInterval    = 30 * time.Second
	writeTimeout    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes a Simulation over the control plane API.
type Server struct {
	mu   sync.RWMutex
	sim  *Simulation
	subs map[chan pipeline.Deployment]struct{}

	engine    *gin.Engine
	closed    chan struct{}
	closeOnce sync.Once
}

// NewServer builds the router for sim.
func NewServer(sim *Simulation) *Server {
	s := &Server{
		sim:    sim,
		subs:   make(map[chan pipeline.Deployment]struct{}),
		closed: make(chan struct{}),
	}

	r := gin.New()
	// Route on the escaped path so ids containing '/' match a single
	// parameter; gin unescapes the parameter values.
	r.UseRawPath = true
	r.Use(gin.Recovery())
	v1 := r.Group("/api/v1/deployments/:id")
	v1.GET("", s.handleDeployment)
	v1.GET("/watch", s.handleWatch)
	v1.GET("/stages/:stage/logs", s.handleLogs)
	v1.POST("/stages/:stage/approve", s.handleApprove)
	v1.POST("/stages/:stage/skip", s.handleSkip)
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Replace swaps in a new simulation, for example after the scenario file
// changed, and pushes its first snapshot to watchers.
func (s *Server) Replace(sim *Simulation) {
	s.mu.Lock()
	s.sim = sim
	s.mu.Unlock()
	s.Broadcast()
}

// Close disconnects every watcher.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Run steps the simulation every interval until ctx is cancelled, then
// closes the server.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer s.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.current().Step() {
				s.Broadcast()
			}
		}
	}
}

// Broadcast sends the current snapshot to every watcher. Slow watchers miss
// intermediate snapshots rather than blocking the simulation.
func (s *Server) Broadcast() {
	d := s.current().Deployment()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.subs {
		select {
		case ch <- d:
		default:
		}
	}
}

func (s *Server) current() *Simulation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sim
}

// lookup resolves the simulation for the :id path parameter, answering 404
// itself when the id does not match.
func (s *Server) lookup(c *gin.Context) (*Simulation, bool) {
	sim := s.current()
	if c.Param("id") != sim.Deployment().ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "deployment not found"})
		return nil, false
	}
	return sim, true
}

func (s *Server) handleDeployment(c *gin.Context) {
	sim, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sim.Deployment())
}

func (s *Server) handleLogs(c *gin.Context) {
	sim, ok := s.lookup(c)
	if !ok {
		return
	}
	offset, err := strconv.ParseInt(c.DefaultQuery("offset_index", "0"), 10, 64)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset_index"})
		return
	}
	page, err := sim.Logs(c.Param("stage"), offset)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleApprove(c *gin.Context) {
	sim, ok := s.lookup(c)
	if !ok {
		return
	}
	approver := c.GetHeader("X-Approver")
	if approver == "" {
		approver = defaultApprover
	}
	s.command(c, "approve", sim.Approve(c.Param("stage"), approver))
}

func (s *Server) handleSkip(c *gin.Context) {
	sim, ok := s.lookup(c)
	if !ok {
		return
	}
	s.command(c, "skip", sim.Skip(c.Param("stage")))
}

func (s *Server) command(c *gin.Context, action string, err error) {
	if err != nil {
		slog.Info("fixture command rejected", "action", action, "stage", c.Param("stage"), "error", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	id := uuid.NewString()
	slog.Info("fixture command accepted", "action", action, "stage", c.Param("stage"), "command_id", id)
	s.Broadcast()
	c.JSON(http.StatusOK, gin.H{"commandId": id})
}

func (s *Server) handleWatch(c *gin.Context) {
	if _, ok := s.lookup(c); !ok {
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	ch := make(chan pipeline.Deployment, 8)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}()

	// The reader only exists to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeJSON(ws, s.current().Deployment()); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-s.closed:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "fixture stopped"),
				time.Now().Add(writeTimeout))
			return
		case <-c.Request.Context().Done():
			return
		case d := <-ch:
			if err := writeJSON(ws, d); err != nil {
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func writeJSON(ws *websocket.Conn, v any) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("failed to write websocket JSON", "error", err)
	}
	return err
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownStage):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Serve runs handler on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("fixture server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
