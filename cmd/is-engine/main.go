package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"IoTSpectra/internal/alerter"
	"IoTSpectra/internal/config"
	"IoTSpectra/internal/engine"
	"IoTSpectra/internal/metrics"
	"IoTSpectra/internal/model"
	"IoTSpectra/internal/notification"
	"IoTSpectra/internal/probe"
	"IoTSpectra/internal/sink"
)

func main() {
	log.Println("Starting is-engine...")

	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

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

	var writer model.Writer
	if cfg.ClickHouse.Enabled {
		writer, err = sink.NewClickHouseWriter(cfg.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to create ClickHouse writer: %v", err)
		}
	} else {
		writer = sink.NewLogWriter()
	}
	defer writer.Close()

	var alrt *alerter.Alerter
	if cfg.Alerter.Enabled {
		var notifier model.Notifier
		if cfg.Alerter.SMTP.Host != "" && len(cfg.Alerter.SMTP.To) > 0 {
			notifier = notification.NewEmailNotifier(cfg.Alerter.SMTP)
		}
		alrt = alerter.NewAlerter(cfg.Alerter, notifier)
		alrt.Start()
		defer alrt.Stop()
	}

	sub, err := probe.NewSubscriber(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	err = sub.Start(func(batch probe.FlowBatch) {
		m.FlowsIngested.WithLabelValues("nats").Add(float64(len(batch.Flows)))

		report, err := eng.Fingerprint(batch.DeviceID, batch.Flows, nil)
		if err != nil {
			log.Printf("Fingerprint failed for device '%s': %v", batch.DeviceID, err)
			return
		}
		if err := writer.WriteFingerprint(batch.DeviceID, report.Signature, report.Classification, report.Confidence); err != nil {
			m.SinkErrors.WithLabelValues("fingerprint").Inc()
			log.Printf("Failed to write fingerprint for device '%s': %v", batch.DeviceID, err)
		}

		scan, err := eng.Scan(batch.DeviceID, batch.Flows)
		if err != nil {
			if !errors.Is(err, model.ErrModelNotTrained) {
				log.Printf("Scan failed for device '%s': %v", batch.DeviceID, err)
			}
			return
		}
		if err := writer.WriteAnomaly(batch.DeviceID, scan.Anomalies); err != nil {
			m.SinkErrors.WithLabelValues("anomaly").Inc()
			log.Printf("Failed to write anomalies for device '%s': %v", batch.DeviceID, err)
		}
		if alrt != nil {
			alrt.Evaluate(batch.DeviceID, scan.Anomalies, scan.Deviation)
		}
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle(cfg.API.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		addr := cfg.API.MetricsAddr
		if addr == "" {
			addr = ":9091"
		}
		log.Printf("Metrics server starting on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping engine...")
	log.Println("Shutdown complete.")
}
