package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// printerView is the wire form of a configured printer on /printers.
type printerView struct {
	Name         string `json:"name"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	PollInterval string `json:"poll_interval"`
	Disabled     bool   `json:"disabled"`
}

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// statusHandler returns the latest snapshot per printer as JSON.
func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.Snapshots()); err != nil {
		a.logger.Warn("Status encode failed.", "error", err)
	}
}

// printersHandler returns the configured printers as JSON.
func (a *App) printersHandler(w http.ResponseWriter, r *http.Request) {
	views := []printerView{}
	if model := a.currentModel(); model != nil {
		for _, p := range model.Printers {
			views = append(views, printerView{
				Name:         p.Name,
				Host:         p.Host,
				Port:         p.Port,
				PollInterval: p.PollInterval.String(),
				Disabled:     p.Disabled,
			})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		a.logger.Warn("Printers encode failed.", "error", err)
	}
}

// newStatusServer builds the status HTTP server without starting it.
func (a *App) newStatusServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/status", a.statusHandler)
	mux.HandleFunc("/printers", a.printersHandler)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
}

// startStatusServer runs the status server in the background and returns
// it for shutdown.
func (a *App) startStatusServer(port int) *http.Server {
	server := a.newStatusServer(port)
	go func() {
		a.logger.Info("Status server starting.",
			"address", fmt.Sprintf("http://localhost%s/health", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Status server failed unexpectedly.", "error", err)
		}
	}()
	return server
}

// stopStatusServer shuts the status server down, bounded so a hung client
// cannot stall process exit.
func (a *App) stopStatusServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		a.logger.Warn("Status server shutdown failed.", "error", err)
	}
}
