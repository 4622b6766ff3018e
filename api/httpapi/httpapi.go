// Package httpapi exposes the progression engine and action processor over a
// minimal REST surface plus a WebSocket event stream.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	wsadapter "progresskit/adapters/websocket"
	"progresskit/core"
	"progresskit/engine"
	"progresskit/processor"
	"progresskit/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin.
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via
	// Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles per-client rate limiting.
	RateLimitEnabled bool
	RateLimitRPM     int
	RateLimitBurst   int
}

// NewMux builds the handler. Routes:
//   - POST {prefix}/users/{id}/actions
//   - GET  {prefix}/users/{id}
//   - GET  {prefix}/users/{id}/dashboard
//   - GET  {prefix}/users/{id}/recommendations
//   - GET  {prefix}/users/{id}/rank
//   - GET  {prefix}/users/{id}/rewards/{level}
//   - POST {prefix}/users/{id}/rewards/{level}/claim
//   - POST {prefix}/users/{id}/prestige
//   - POST {prefix}/users/{id}/updates/{daily|weekly|monthly}
//   - GET  {prefix}/leaderboard?limit=N
//   - GET  {prefix}/stats
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws
func NewMux(proc *processor.Processor, eng *engine.ProgressionEngine, hub *realtime.Hub, opts Options) http.Handler {
	api := &server{proc: proc, eng: eng}
	mux := http.NewServeMux()

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), api.healthz)
	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub))
	}
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard"), api.leaderboard)
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/stats"), api.stats)
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/users/"), func(w http.ResponseWriter, r *http.Request) {
		api.users(w, r, opts.PathPrefix)
	})

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return handler
}

type server struct {
	proc *processor.Processor
	eng  *engine.ProgressionEngine
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	// read-only storage probe; must not create a record that would show up
	// on the leaderboard
	_, _, err := s.eng.GetLevelProgress(r.Context(), "healthcheck_probe")
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{"storage": "ok"},
	}
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	} else {
		w.WriteHeader(http.StatusOK)
	}
	writeJSON(w, status)
}

func (s *server) leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}
	limit := 10
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	top, err := s.eng.GetTopUsers(r.Context(), limit)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, map[string]any{"top": top})
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}
	st, err := s.proc.GetGameStats(r.Context())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, st)
}

type actionRequest struct {
	Kind         core.ActionKind `json:"kind"`
	Ref          string          `json:"ref,omitempty"`
	StreakLength int             `json:"streak_length,omitempty"`
	Timestamp    time.Time       `json:"timestamp,omitempty"`
}

func (s *server) users(w http.ResponseWriter, r *http.Request, prefix string) {
	path := strings.TrimPrefix(r.URL.Path, prefix)
	parts := splitPath(path)
	if len(parts) < 2 || parts[0] != "users" {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}
	user, err := core.NormalizeUserID(core.UserID(parts[1]))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user", err.Error())
		return
	}
	rest := parts[2:]
	ctx := r.Context()

	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		rec, err := s.eng.GetOrCreate(ctx, user)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, rec)

	case r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "actions":
		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "malformed action body")
			return
		}
		res, err := s.proc.ProcessAction(ctx, core.UserAction{
			Kind:         req.Kind,
			UserID:       user,
			Ref:          req.Ref,
			StreakLength: req.StreakLength,
			Timestamp:    req.Timestamp,
		})
		if err != nil {
			if errors.Is(err, core.ErrInvalidParameters) {
				writeError(w, http.StatusBadRequest, "invalid_action", err.Error())
				return
			}
			writeStorageError(w, err)
			return
		}
		writeJSON(w, res)

	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "dashboard":
		data, err := s.proc.GetDashboardData(ctx, user)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, data)

	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "recommendations":
		recs, err := s.proc.GetRecommendations(ctx, user)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, map[string]any{"recommendations": recs})

	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "rank":
		rank, err := s.eng.GetRank(ctx, user)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, map[string]any{"rank": rank})

	case r.Method == http.MethodGet && len(rest) == 2 && rest[0] == "rewards":
		level, err := strconv.Atoi(rest[1])
		if err != nil || level < 1 {
			writeError(w, http.StatusBadRequest, "invalid_level", "level must be a positive integer")
			return
		}
		writeJSON(w, map[string]any{"rewards": s.eng.GetLevelRewards(level)})

	case r.Method == http.MethodPost && len(rest) == 3 && rest[0] == "rewards" && rest[2] == "claim":
		level, err := strconv.Atoi(rest[1])
		if err != nil || level < 1 {
			writeError(w, http.StatusBadRequest, "invalid_level", "level must be a positive integer")
			return
		}
		claimed, err := s.eng.ClaimLevelReward(ctx, user, level)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, map[string]any{"claimed": claimed})

	case r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "prestige":
		ok, bonus, err := s.eng.PerformPrestige(ctx, user)
		if err != nil {
			if errors.Is(err, core.ErrInvalidParameters) {
				writeError(w, http.StatusBadRequest, "invalid_user", err.Error())
				return
			}
			writeStorageError(w, err)
			return
		}
		if ok && bonus > 0 {
			// bonus is a separate ordinary award after the reset
			if _, err := s.eng.AddExperience(ctx, user, bonus); err != nil {
				writeStorageError(w, err)
				return
			}
		}
		writeJSON(w, map[string]any{"prestiged": ok, "bonus": bonus})

	case r.Method == http.MethodPost && len(rest) == 2 && rest[0] == "updates":
		var err error
		switch rest[1] {
		case "daily":
			err = s.proc.DailyUpdate(ctx, user)
		case "weekly":
			err = s.proc.WeeklyUpdate(ctx, user)
		case "monthly":
			err = s.proc.MonthlyUpdate(ctx, user)
		default:
			writeError(w, http.StatusNotFound, "not_found", "unknown update cycle")
			return
		}
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

// Helpers

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	return strings.TrimSuffix(prefix, "/") + path
}

func splitPath(p string) []string {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return parts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg})
}

func writeStorageError(w http.ResponseWriter, err error) {
	// retryable generic failure; atomic awards mean no partial state leaked
	writeError(w, http.StatusInternalServerError, "internal", err.Error())
}
