package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"progresskit"
	ws "progresskit/adapters/websocket"
	"progresskit/core"
	"progresskit/realtime"
)

func main() {
	// readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	ctx := context.Background()
	hub := realtime.NewHub()
	svc := progresskit.New(progresskit.WithRealtime(hub))
	defer svc.Close()

	http.Handle("/ws", ws.Handler(hub))
	http.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		// routes: POST /users/{id}/xp?amount=50, POST /users/{id}/actions?kind=habit_completed&ref=h1,
		// POST /users/{id}/prestige, GET /users/{id}
		parts := split(r.URL.Path, '/')
		if len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		user := core.UserID(parts[1])
		switch r.Method {
		case http.MethodPost:
			if len(parts) >= 3 && parts[2] == "xp" {
				amount, _ := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
				leveled, err := svc.Engine.AddExperience(ctx, user, amount)
				writeJSON(w, map[string]any{"leveled_up": leveled, "err": errString(err)})
				return
			}
			if len(parts) >= 3 && parts[2] == "actions" {
				res, err := svc.Processor.ProcessAction(ctx, core.UserAction{
					Kind:   core.ActionKind(r.URL.Query().Get("kind")),
					UserID: user,
					Ref:    r.URL.Query().Get("ref"),
				})
				writeJSON(w, map[string]any{"result": res, "err": errString(err)})
				return
			}
			if len(parts) >= 3 && parts[2] == "prestige" {
				ok, bonus, err := svc.Engine.PerformPrestige(ctx, user)
				if ok && bonus > 0 {
					_, err = svc.Engine.AddExperience(ctx, user, bonus)
				}
				writeJSON(w, map[string]any{"prestiged": ok, "bonus": bonus, "err": errString(err)})
				return
			}
		case http.MethodGet:
			rec, err := svc.Engine.GetOrCreate(ctx, user)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			writeJSON(w, rec)
			return
		}
		http.NotFound(w, r)
	})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

func split(p string, sep rune) []string {
	var parts []string
	current := make([]rune, 0, len(p))

	for _, r := range p {
		if r == sep {
			if len(current) > 0 {
				parts = append(parts, string(current))
				current = current[:0]
			}
			continue
		}
		current = append(current, r)
	}

	if len(current) > 0 {
		parts = append(parts, string(current))
	}

	return parts
}
