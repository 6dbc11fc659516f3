package alerter

import (
	"sync"
	"testing"
	"time"

	"IoTSpectra/internal/config"
	"IoTSpectra/internal/model"
)

func collectAlerts(a *Alerter) (*sync.Mutex, *[]Alert) {
	var mu sync.Mutex
	var got []Alert
	a.AttachBroadcast(func(alert Alert) {
		mu.Lock()
		got = append(got, alert)
		mu.Unlock()
	})
	return &mu, &got
}

func waitFor(t *testing.T, mu *sync.Mutex, got *[]Alert, want int) []Alert {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(*got)
		mu.Unlock()
		if n >= want {
			mu.Lock()
			defer mu.Unlock()
			return append([]Alert(nil), *got...)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d alerts", want)
	return nil
}

func TestDeviationAlertDelivered(t *testing.T) {
	a := NewAlerter(config.AlerterConfig{MinSeverity: "medium"}, nil)
	mu, got := collectAlerts(a)
	a.Start()
	defer a.Stop()

	a.Evaluate("cam-01", nil, &model.DeviationReport{
		DeviceID:          "cam-01",
		DeviationDetected: true,
		AverageDeviation:  0.9,
		Threshold:         0.3,
		Severity:          "high",
	})

	alerts := waitFor(t, mu, got, 1)
	if alerts[0].Kind != "deviation" || alerts[0].Severity != "high" {
		t.Errorf("unexpected alert: %+v", alerts[0])
	}
	if alerts[0].ID == "" || alerts[0].Message == "" {
		t.Error("alert must carry an ID and message")
	}
}

func TestSeverityFloorFilters(t *testing.T) {
	a := NewAlerter(config.AlerterConfig{MinSeverity: "high"}, nil)
	mu, got := collectAlerts(a)
	a.Start()

	// Medium deviation and low anomaly burst, both below the floor.
	a.Evaluate("rt-01", &model.AnomalyResult{AnomalyCount: 1, TotalSamples: 100, AnomalyRatio: 0.01, Strategy: "isolation"},
		&model.DeviationReport{DeviationDetected: true, AverageDeviation: 0.4, Severity: "medium"})
	a.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(*got) != 0 {
		t.Errorf("expected no alerts below the severity floor, got %d", len(*got))
	}
}

func TestAnomalySeverityBands(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{0.05, "low"},
		{0.3, "medium"},
		{0.8, "high"},
	}
	for _, tc := range cases {
		if got := anomalySeverity(tc.ratio); got != tc.want {
			t.Errorf("anomalySeverity(%v) = %q, want %q", tc.ratio, got, tc.want)
		}
	}
}

func TestStopDrainsQueue(t *testing.T) {
	a := NewAlerter(config.AlerterConfig{MinSeverity: "low"}, nil)
	mu, got := collectAlerts(a)
	a.Start()

	for i := 0; i < 10; i++ {
		a.Evaluate("spk-01", &model.AnomalyResult{AnomalyCount: 6, TotalSamples: 10, AnomalyRatio: 0.6, Strategy: "sequence"}, nil)
	}
	a.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(*got) != 10 {
		t.Errorf("expected all 10 queued alerts delivered on stop, got %d", len(*got))
	}
}
