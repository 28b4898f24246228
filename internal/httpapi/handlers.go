package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"TradePulse/internal/model"
)

type orderRequest struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

type loginRequest struct {
	Email string `json:"email"`
}

// handleIngest accepts a telemetry envelope. Malformed or unmatched input is
// a logical no-op, never a transport error.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"received": false})
		return
	}
	s.ingestor.Handle(body)
	s.writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.events.Snapshot())
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	var since int64
	if v := r.URL.Query().Get("lastFetchTime"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "lastFetchTime must be an integer")
			return
		}
		since = parsed
	}
	delta, cursor := s.events.Delta(since)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"events":        delta,
		"lastFetchTime": cursor,
	})
}

func (s *Server) handlePrice(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.feed.LatestPrice())
}

func (s *Server) handleAdvice(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Advice())
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		s.writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	info, err := s.ledger.Info(email)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		s.writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	info, err := s.ledger.Balance(email)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		s.writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	created, err := s.ledger.EnsureUser(req.Email)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if created {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"exists":  false,
			"action":  "register",
			"message": "User registered successfully",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"exists":  true,
		"action":  "login",
		"message": "User exists, proceed to login",
	})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	email, assetType, ok := s.decodeOrder(w, r)
	if !ok {
		return
	}
	result, err := s.ledger.Buy(email, assetType)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	email, assetType, ok := s.decodeOrder(w, r)
	if !ok {
		return
	}
	result, err := s.ledger.Sell(email, assetType)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) decodeOrder(w http.ResponseWriter, r *http.Request) (string, model.PositionType, bool) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return "", "", false
	}
	if req.Email == "" {
		s.writeError(w, http.StatusBadRequest, "email is required")
		return "", "", false
	}
	switch strings.ToUpper(req.Type) {
	case string(model.PositionBTC):
		return req.Email, model.PositionBTC, true
	case string(model.PositionNDX):
		return req.Email, model.PositionNDX, true
	default:
		s.writeError(w, http.StatusBadRequest, "type must be BTC or NDX")
		return "", "", false
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error().Err(err).Str("path", r.URL.Path).
		Str("request_id", requestIDFrom(r.Context())).Msg("request failed")
	s.writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"error":   "internal error",
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encode response failed")
	}
}
