package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"battleship-rampage/internal/app"
	"battleship-rampage/internal/codec"
	"battleship-rampage/internal/game"
	"battleship-rampage/internal/notify"
	"battleship-rampage/internal/store"
)

type Server struct {
	svc *app.Service
	hub *notify.Hub
	log zerolog.Logger

	// CleanupSecret guards POST /v1/admin/cleanup; empty disables it.
	CleanupSecret string

	// milliseconds since epoch when this server booted
	startAt int64
}

func New(svc *app.Service, hub *notify.Hub, log zerolog.Logger, cleanupSecret string) *Server {
	return &Server{
		svc:           svc,
		hub:           hub,
		log:           log,
		CleanupSecret: cleanupSecret,
		startAt:       time.Now().UnixMilli(),
	}
}

func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/status", s.handleStatus)

	mux.HandleFunc("POST /v1/games", s.handleCreate)
	mux.HandleFunc("GET /v1/games/{id}", s.handleView)
	mux.HandleFunc("POST /v1/games/{id}/join", s.handleJoin)
	mux.HandleFunc("PUT /v1/games/{id}/fleet", s.handlePlaceFleet)
	mux.HandleFunc("POST /v1/games/{id}/fleet/random", s.handleRandomFleet)
	mux.HandleFunc("POST /v1/games/{id}/start", s.handleStart)
	mux.HandleFunc("POST /v1/games/{id}/shots", s.handleShot)
	mux.HandleFunc("POST /v1/games/{id}/play-again", s.handlePlayAgain)
	mux.HandleFunc("POST /v1/games/{id}/restart", s.handleRestart)
	mux.HandleFunc("GET /v1/games/{id}/events", s.handleEvents)

	mux.HandleFunc("POST /v1/admin/cleanup", s.handleCleanup)
}

// Handler is the full middleware stack around the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Routes(mux)

	var h http.Handler = WithCORS(mux)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	return hlog.NewHandler(s.log)(h)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// === Errors ===

func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrUnknownPlayer):
		return http.StatusForbidden
	case errors.Is(err, game.ErrPlacementInvalid),
		errors.Is(err, game.ErrInvalidConfig),
		errors.Is(err, game.ErrShotOutOfBounds):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrDuplicateShot),
		errors.Is(err, game.ErrGameAlreadyFinished),
		errors.Is(err, game.ErrInvalidStateTransition),
		errors.Is(err, game.ErrGameFull):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	body := map[string]any{"error": err.Error()}
	var pe *game.PlacementError
	if errors.As(err, &pe) {
		body["rule"] = pe.Rule
		if pe.Index >= 0 {
			body["ship"] = pe.Index
			body["cell"] = pe.Cell
		}
	}
	if code == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, body)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json: " + err.Error()})
		return false
	}
	return true
}

func requirePlayer(w http.ResponseWriter, playerID string) bool {
	if strings.TrimSpace(playerID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "playerId required"})
		return false
	}
	return true
}

// === Status ===

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"startedAt": s.startAt})
}

// === Setup ===

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req codec.CreateGameReq
	if !decode(w, r, &req) || !requirePlayer(w, req.PlayerID) {
		return
	}
	g, err := s.svc.CreateGame(app.CreateParams{
		Mode:      req.Mode,
		BoardSize: req.BoardSize,
		Quota:     req.Quota,
		PlayerID:  req.PlayerID,
		Name:      req.Name,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req codec.JoinReq
	if !decode(w, r, &req) || !requirePlayer(w, req.PlayerID) {
		return
	}
	g, err := s.svc.JoinGame(r.PathValue("id"), req.PlayerID, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if !requirePlayer(w, playerID) {
		return
	}
	v, err := s.svc.View(r.PathValue("id"), playerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePlaceFleet(w http.ResponseWriter, r *http.Request) {
	var req codec.FleetReq
	if !decode(w, r, &req) || !requirePlayer(w, req.PlayerID) {
		return
	}
	g, err := s.svc.PlaceFleet(r.PathValue("id"), req.PlayerID, req.Ships)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleRandomFleet(w http.ResponseWriter, r *http.Request) {
	var req codec.PlayerReq
	if !decode(w, r, &req) || !requirePlayer(w, req.PlayerID) {
		return
	}
	g, fleet, err := s.svc.RandomFleet(r.PathValue("id"), req.PlayerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.RandomFleetResp{Game: g, Fleet: fleet})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.StartBattle(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// === Battle ===

func (s *Server) handleShot(w http.ResponseWriter, r *http.Request) {
	var req codec.ShotReq
	if !decode(w, r, &req) || !requirePlayer(w, req.PlayerID) {
		return
	}
	res, err := s.svc.Fire(r.PathValue("id"), req.PlayerID, req.Target())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// === Rematch ===

func (s *Server) handlePlayAgain(w http.ResponseWriter, r *http.Request) {
	var req codec.PlayAgainReq
	if !decode(w, r, &req) || !requirePlayer(w, req.PlayerID) {
		return
	}
	g, err := s.svc.SetPlayAgain(r.PathValue("id"), req.PlayerID, req.PlayAgain)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	var req codec.PlayerReq
	if !decode(w, r, &req) || !requirePlayer(w, req.PlayerID) {
		return
	}
	g, err := s.svc.Restart(r.PathValue("id"), req.PlayerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// === Events ===

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, r.PathValue("id"))
}

// === Admin ===

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if s.CleanupSecret == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.CleanupSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	n, err := s.svc.Cleanup()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

// === CORS ===

func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
