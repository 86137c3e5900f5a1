package indengine

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"candle-featuresv1/internal/indicator"
)

// Handler serves POST /reload (a JSON array of interval configs) and
// GET /healthz.
func (svc *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/reload", svc.handleReload)
	mux.Handle("/healthz", svc.deps.Health)
	return mux
}

// ServeHTTP runs the control server on cfg.HTTPAddr until ctx is done.
func (svc *Service) ServeHTTP(ctx context.Context) error {
	if svc.cfg.HTTPAddr == "" {
		return nil
	}
	srv := &http.Server{
		Addr:              svc.cfg.HTTPAddr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	slog.Info("indengine control server listening", "addr", svc.cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleReload handles POST /reload for live config updates via HTTP.
func (svc *Service) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var configs []indicator.IntervalConfig
	if err := json.NewDecoder(r.Body).Decode(&configs); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	preserved, created, err := svc.Reload(r.Context(), configs)
	if err != nil {
		http.Error(w, "validation: "+err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"preserved": preserved,
		"created":   created,
	})
}
