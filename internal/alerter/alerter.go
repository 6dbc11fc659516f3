// Package alerter evaluates scan outcomes against severity rules and fans
// matching alerts out to email and any attached broadcast sinks.
package alerter

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"IoTSpectra/internal/config"
	"IoTSpectra/internal/model"
)

// Alert is one triggered alert, shared by email bodies and the websocket
// stream.
type Alert struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"` // "deviation" or "anomaly"
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
}

var severityRank = map[string]int{"low": 1, "medium": 2, "high": 3}

// Alerter consumes scan outcomes on a channel and triggers notifications for
// those at or above the configured severity.
type Alerter struct {
	minSeverity int
	notifier    model.Notifier
	events      chan Alert
	stopChan    chan struct{}
	wg          sync.WaitGroup

	mu        sync.Mutex
	broadcast []func(Alert)
}

// NewAlerter creates an alerter. The notifier may be nil, in which case
// alerts only reach broadcast sinks and the log.
func NewAlerter(cfg config.AlerterConfig, notifier model.Notifier) *Alerter {
	rank, ok := severityRank[cfg.MinSeverity]
	if !ok {
		rank = severityRank["medium"]
	}
	return &Alerter{
		minSeverity: rank,
		notifier:    notifier,
		events:      make(chan Alert, 256),
		stopChan:    make(chan struct{}),
	}
}

// AttachBroadcast registers a sink that receives every triggered alert.
func (a *Alerter) AttachBroadcast(fn func(Alert)) {
	a.mu.Lock()
	a.broadcast = append(a.broadcast, fn)
	a.mu.Unlock()
}

// Start begins consuming queued alerts.
func (a *Alerter) Start() {
	log.Println("Alerter started")
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case alert := <-a.events:
				a.dispatch(alert)
			case <-a.stopChan:
				// Drain what is already queued before exiting.
				for {
					select {
					case alert := <-a.events:
						a.dispatch(alert)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop gracefully stops the alerter, draining pending alerts.
func (a *Alerter) Stop() {
	log.Println("Stopping Alerter...")
	close(a.stopChan)
	a.wg.Wait()
}

// Evaluate inspects one scan outcome and queues alerts for deviations and
// anomaly bursts at or above the severity floor. It never blocks: when the
// queue is full the alert is dropped with a log line.
func (a *Alerter) Evaluate(deviceID string, anomalies *model.AnomalyResult, deviation *model.DeviationReport) {
	if deviation != nil && deviation.DeviationDetected {
		a.enqueue(Alert{
			DeviceID: deviceID,
			Kind:     "deviation",
			Severity: deviation.Severity,
			Message: fmt.Sprintf("Device %s deviates from baseline: average deviation %.2f (threshold %.2f)",
				deviceID, deviation.AverageDeviation, deviation.Threshold),
		})
	}
	if anomalies != nil && anomalies.AnomalyCount > 0 {
		a.enqueue(Alert{
			DeviceID: deviceID,
			Kind:     "anomaly",
			Severity: anomalySeverity(anomalies.AnomalyRatio),
			Message: fmt.Sprintf("Device %s: %d of %d flows anomalous (%s strategy)",
				deviceID, anomalies.AnomalyCount, anomalies.TotalSamples, anomalies.Strategy),
		})
	}
}

func anomalySeverity(ratio float64) string {
	switch {
	case ratio > 0.5:
		return "high"
	case ratio > 0.2:
		return "medium"
	default:
		return "low"
	}
}

func (a *Alerter) enqueue(alert Alert) {
	if severityRank[alert.Severity] < a.minSeverity {
		return
	}
	alert.ID = uuid.NewString()
	alert.Timestamp = time.Now().UTC()

	select {
	case a.events <- alert:
	default:
		log.Printf("Alert queue full, dropping alert for device '%s'", alert.DeviceID)
	}
}

func (a *Alerter) dispatch(alert Alert) {
	log.Printf("ALERT [%s/%s] %s", alert.Severity, alert.Kind, alert.Message)

	a.mu.Lock()
	sinks := append(([]func(Alert))(nil), a.broadcast...)
	a.mu.Unlock()
	for _, fn := range sinks {
		fn(alert)
	}

	if a.notifier == nil {
		return
	}
	subject := fmt.Sprintf("[IoTSpectra] %s alert for device %s", alert.Severity, alert.DeviceID)
	if err := a.notifier.Send(subject, alert.Message); err != nil {
		log.Printf("Failed to send alert notification: %v", err)
	}
}
