package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"regexp"
	"time"

	"github.com/gorilla/mux"

	"daycal/internal/agenda"
	"daycal/internal/config"
	appLog "daycal/internal/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{3,8}$`)

var boardTemplate = template.Must(template.New("board.html").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"css": func(color string) template.CSS {
		if !colorPattern.MatchString(color) {
			return "#888888"
		}
		return template.CSS(color)
	},
}).ParseFS(templateFS, "templates/board.html"))

// BoardSource produces the board for one request.
type BoardSource interface {
	Board(ctx context.Context) (agenda.Board, error)
}

// Server serves the wall page, its JSON form, health and the last snapshot.
type Server struct {
	cfg    *config.Config
	boards BoardSource
	tr     Translator
	router *mux.Router
}

func NewServer(cfg *config.Config, boards BoardSource) *Server {
	s := &Server{
		cfg:    cfg,
		boards: boards,
		tr:     NewTranslator(cfg.Language),
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed handler with logging and, when configured,
// basic auth applied.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return requestLogger(h)
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc("/api/board", s.handleBoardJSON).Methods(http.MethodGet)
	s.router.HandleFunc("/preview.png", s.handlePreview).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleBoardHTML).Methods(http.MethodGet)
}

// StartServer serves until ctx is canceled, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, boards BoardSource) error {
	s := NewServer(cfg, boards)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) board(w http.ResponseWriter, r *http.Request) (boardView, bool) {
	b, err := s.boards.Board(r.Context())
	if err != nil {
		appLog.Error("build board failed", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "failed to build board")
		return boardView{}, false
	}
	return newBoardView(b, s.tr), true
}

func (s *Server) handleBoardJSON(w http.ResponseWriter, r *http.Request) {
	v, ok := s.board(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleBoardHTML(w http.ResponseWriter, r *http.Request) {
	v, ok := s.board(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, v); err != nil {
		appLog.Error("render board failed", err, "request_id", RequestID(r.Context()))
		http.Error(w, "failed to render board", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// handlePreview serves the last snapshot written by the capture command.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.Capture.Output)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
