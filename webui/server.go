package webui

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/julienschmidt/httprouter"
)

const httpTimeoutsMs = 3000

//go:embed index.html
var controlPage []byte

// StateSource exposes the current line states without giving the web
// layer any write access.
type StateSource interface {
	States() map[string]map[string]bool
}

// Server hosts the operator control page over plain HTTP. The page
// itself talks to the broker directly (mqtt over websockets); the
// server only hands out the page and a read-only state snapshot, with
// permissive CORS headers so the page works from any origin.
type Server struct {
	Addr string

	states StateSource
	server *http.Server
	logger *log.Logger
}

func NewServer(addr string, states StateSource, logger *log.Logger) *Server {
	return &Server{
		Addr:   addr,
		states: states,
		logger: logger,
	}
}

func (s *Server) handler() http.Handler {
	router := httprouter.New()
	router.GET("/", s.handleIndex)
	router.GET("/state", s.handleState)

	return corsHandler(router)
}

func (s *Server) Start() error {
	httpTimeout := httpTimeoutsMs * time.Millisecond

	s.server = &http.Server{
		Addr:              s.Addr,
		Handler:           s.handler(),
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: httpTimeout,
		WriteTimeout:      httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("web ui server failed", "addr", s.Addr, "err", err)
		}
	}()

	s.logger.Info("web ui server started", "addr", s.Addr)
	return nil
}

func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(controlPage)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(s.states.States())
	if err != nil {
		s.logger.Error("failed to encode state snapshot", "err", err)
	}
}

func corsHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}
