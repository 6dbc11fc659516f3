package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"IoTSpectra/internal/alerter"
	"IoTSpectra/internal/config"
	"IoTSpectra/internal/engine"
	"IoTSpectra/internal/engine/feature"
	"IoTSpectra/internal/metrics"
	"IoTSpectra/internal/model"
	"IoTSpectra/internal/notification"
)

// flowRequest is the request body for fingerprint/scan/rebaseline calls.
type flowRequest struct {
	Flows []model.FlowRecord     `json:"flows"`
	Hints *feature.IdentityHints `json:"hints,omitempty"`
}

type apiServer struct {
	engine  *engine.Engine
	alerter *alerter.Alerter
}

func main() {
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	m := metrics.New()
	registry := prometheus.NewRegistry()
	if err := m.Register(registry); err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	eng, err := engine.New(cfg, m)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	if err := eng.LoadModels(); err != nil {
		log.Printf("Warning: could not load models, running untrained: %v", err)
	}

	hub := NewHub()
	var notifier model.Notifier
	if cfg.Alerter.SMTP.Host != "" && len(cfg.Alerter.SMTP.To) > 0 {
		notifier = notification.NewEmailNotifier(cfg.Alerter.SMTP)
	}
	alrt := alerter.NewAlerter(cfg.Alerter, notifier)
	alrt.AttachBroadcast(hub.Broadcast)
	alrt.Start()
	defer alrt.Stop()

	s := &apiServer{engine: eng, alerter: alrt}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/devices/{id}/fingerprint", s.handleFingerprint).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/devices/{id}/scan", s.handleScan).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/devices/{id}/rebaseline", s.handleRebaseline).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/devices/{id}/profile", s.handleProfile).Methods(http.MethodGet)
	r.HandleFunc("/ws", hub.ServeWS)
	r.Handle(cfg.API.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("API server starting on %s", cfg.API.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
	log.Println("Server exited.")
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"strategy": s.engine.Detector(),
	})
}

func (s *apiServer) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	var req flowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := s.engine.Fingerprint(deviceID, req.Flows, req.Hints)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *apiServer) handleScan(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	var req flowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := s.engine.Scan(deviceID, req.Flows)
	if err != nil {
		if errors.Is(err, model.ErrModelNotTrained) {
			http.Error(w, "anomaly detector is not trained", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.alerter.Evaluate(deviceID, report.Anomalies, report.Deviation)
	writeJSON(w, http.StatusOK, report)
}

func (s *apiServer) handleRebaseline(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	var req flowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := s.engine.Rebaseline(deviceID, req.Flows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *apiServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]

	profile, ok, err := s.engine.Profile(deviceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no profile for device", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
