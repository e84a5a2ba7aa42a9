package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

var (
	errRateLimited = errors.New("RATE_LIMITED: Too many messages, slow down")
	errInvalidJSON = errors.New("INVALID_JSON: Message is not valid JSON")
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/health", s.healthHandler)
	r.Get("/rooms", s.roomsHandler)
	r.Get("/results", s.resultsHandler)
	r.Get("/websocket", s.websocketHandler)

	return r
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// if it is not allowed.
func (s *Server) allowOrigin(origin string) string {
	if slices.Contains(s.cfg.AllowedOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(s.cfg.AllowedOrigins, origin) {
		return origin
	}
	return ""
}

// originPatterns converts the allowed origins to host patterns for the
// websocket handshake.
func (s *Server) originPatterns() []string {
	patterns := make([]string, 0, len(s.cfg.AllowedOrigins))
	for _, o := range s.cfg.AllowedOrigins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		patterns = append(patterns, strings.TrimSuffix(o, "/"))
	}
	return patterns
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Rooms:       s.rooms.Count(),
		Connections: s.conns.Count(),
		Store:       s.archive.Health(r.Context()),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) roomsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.rooms.PublicRooms(false))
}

func (s *Server) resultsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeJSON(w, http.StatusBadRequest, ErrorMessage{Code: "INVALID_LIMIT", Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	results, err := s.archive.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("failed to load results")
		s.writeJSON(w, http.StatusInternalServerError, ErrorMessage{Code: "STORE_UNAVAILABLE", Message: "results are unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	resp, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(resp); err != nil {
		s.log.Debug().Err(err).Msg("failed to write response")
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket handshake failed")
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.NewString()
	log := s.log.With().Str("conn_id", connectionID).Logger()
	log.Info().Str("remote", r.RemoteAddr).Msg("connection opened")

	s.conns.AddConnection(connectionID, socket)
	defer func() {
		s.limiter.RemoveConnection(connectionID)
		s.router.Disconnect(connectionID)
		log.Info().Msg("connection closed")
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 {
				log.Debug().Err(err).Msg("read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			log.Debug().Msg("ignoring non-text frame")
			continue
		}

		if !s.limiter.Allow(connectionID) {
			s.conns.ToConn(connectionID, MsgError, errorMessage(errRateLimited))
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Msg("invalid JSON")
			s.conns.ToConn(connectionID, MsgError, errorMessage(errInvalidJSON))
			continue
		}

		log.Debug().Str("type", msg.Type).Msg("message received")
		s.router.Dispatch(connectionID, msg)
	}
}
