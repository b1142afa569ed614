package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"stockticker/internal/auth"
	"stockticker/internal/domain"
	"stockticker/internal/store"
	"stockticker/pkg/stockticker"
)

const (
	defaultPageSize = 10
	maxPageSize     = 500
)

// Server serves the ticker HTTP API.
type Server struct {
	snapshots store.SnapshotStore
	auth      *auth.Service
	hub       *Hub
	seedPath  string
	log       *slog.Logger
}

// NewServer creates the API server. hub may be nil, in which case the
// stream endpoint is not registered.
func NewServer(snapshots store.SnapshotStore, authSvc *auth.Service, hub *Hub, seedPath string, log *slog.Logger) *Server {
	return &Server{
		snapshots: snapshots,
		auth:      authSvc,
		hub:       hub,
		seedPath:  seedPath,
		log:       log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)

	protect := s.auth.Middleware(denyUnauthorized)
	mux.Handle("GET /api/stock-data/latest", protect(http.HandlerFunc(s.handleLatest)))
	mux.Handle("GET /api/stock-data/all", protect(http.HandlerFunc(s.handleAll)))
	mux.Handle("GET /api/stock-data/paginated", protect(http.HandlerFunc(s.handlePaginated)))
	mux.Handle("GET /api/stock-data/range", protect(http.HandlerFunc(s.handleRange)))
	mux.Handle("GET /api/stock-data/count", protect(http.HandlerFunc(s.handleCount)))
	mux.Handle("GET /api/stock-data/{id}", protect(http.HandlerFunc(s.handleGet)))
	mux.Handle("POST /api/stock-data/load-csv", protect(http.HandlerFunc(s.handleLoadCSV)))
	if s.hub != nil {
		mux.Handle("GET /api/stock-data/stream", protect(http.HandlerFunc(s.hub.ServeWS)))
	}
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func denyUnauthorized(w http.ResponseWriter, _ error) {
	writeError(w, http.StatusUnauthorized, "Unauthorized")
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func decodeCredentials(r *http.Request) (stockticker.LoginRequest, error) {
	var req stockticker.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, errors.New("invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return req, errors.New("username and password are required")
	}
	return req, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	case err != nil:
		s.log.Error("login", "user", req.Username, "error", err)
		writeError(w, http.StatusBadRequest, "Authentication failed: "+err.Error())
		return
	}

	s.log.Info("user logged in", "user", req.Username)
	writeOK(w, "Login successful", stockticker.LoginData{Token: token, Username: req.Username})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCredentials(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := s.auth.Register(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusBadRequest, "Username already exists")
		return
	case err != nil:
		s.log.Error("register", "user", req.Username, "error", err)
		writeError(w, http.StatusBadRequest, "Registration failed: "+err.Error())
		return
	}

	s.log.Info("user registered", "user", req.Username)
	writeOK(w, "User registered successfully", stockticker.LoginData{Token: token, Username: req.Username})
}

// ---------------------------------------------------------------------------
// Stock data
// ---------------------------------------------------------------------------

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Latest(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No stock data available")
		return
	}
	if err != nil {
		s.fail(w, "Failed to retrieve latest stock data", err)
		return
	}
	writeOK(w, "Latest stock data retrieved successfully", stockticker.FromSnapshot(snap))
}

// handleAll returns every snapshot, newest first.
func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.snapshots.All(r.Context())
	if err != nil {
		s.fail(w, "Failed to retrieve stock data", err)
		return
	}
	slices.Reverse(snaps)
	writeOK(w, "Stock data retrieved successfully", stockDataList(snaps))
}

func (s *Server) handlePaginated(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 0)
	if err != nil || page < 0 {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	size, err := intParam(r, "size", defaultPageSize)
	if err != nil || size <= 0 || size > maxPageSize {
		writeError(w, http.StatusBadRequest, "invalid size")
		return
	}

	p, err := s.snapshots.List(r.Context(), page, size)
	if err != nil {
		s.fail(w, "Failed to retrieve paginated stock data", err)
		return
	}
	writeOK(w, "Paginated stock data retrieved successfully", stockticker.PageData{
		Content:       stockDataList(p.Items),
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: p.Total,
		TotalPages:    p.TotalPages,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	snap, err := s.snapshots.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("stock data %d not found", id))
		return
	}
	if err != nil {
		s.fail(w, "Failed to retrieve stock data", err)
		return
	}
	writeOK(w, "Stock data retrieved successfully", stockticker.FromSnapshot(snap))
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.ParseInLocation(stockticker.TimestampLayout, q.Get("startTime"), time.Local)
	if err != nil {
		writeError(w, http.StatusBadRequest, "startTime must use format "+stockticker.TimestampLayout)
		return
	}
	end, err := time.ParseInLocation(stockticker.TimestampLayout, q.Get("endTime"), time.Local)
	if err != nil {
		writeError(w, http.StatusBadRequest, "endTime must use format "+stockticker.TimestampLayout)
		return
	}

	snaps, err := s.snapshots.Range(r.Context(), start, end)
	if err != nil {
		s.fail(w, "Failed to retrieve stock data by range", err)
		return
	}
	writeOK(w, "Stock data in range retrieved successfully", stockDataList(snaps))
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.snapshots.Count(r.Context())
	if err != nil {
		s.fail(w, "Failed to retrieve total count", err)
		return
	}
	writeOK(w, "Total record count retrieved successfully", n)
}

// handleLoadCSV imports the configured seed file and publishes the newest
// imported snapshot to stream subscribers.
func (s *Server) handleLoadCSV(w http.ResponseWriter, r *http.Request) {
	if s.seedPath == "" {
		writeError(w, http.StatusBadRequest, "Failed to load CSV data: no seed file configured")
		return
	}
	snaps, err := store.LoadSeedFile(s.seedPath, s.log)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to load CSV data: "+err.Error())
		return
	}
	if err := s.snapshots.SaveSnapshots(r.Context(), snaps); err != nil {
		s.fail(w, "Failed to load CSV data", err)
		return
	}

	s.log.Info("seed data imported", "path", s.seedPath, "snapshots", len(snaps), "user", auth.Username(r.Context()))
	if s.hub != nil {
		if latest, err := s.snapshots.Latest(r.Context()); err == nil {
			s.hub.Publish(latest)
		}
	}
	writeOK(w, "CSV data loaded successfully", fmt.Sprintf("Imported %d snapshots", len(snaps)))
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	s.log.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg+": "+err.Error())
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// Publish pushes snap to websocket subscribers.
func (s *Server) Publish(snap domain.Snapshot) {
	if s.hub != nil {
		s.hub.Publish(snap)
	}
}
