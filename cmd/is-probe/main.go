package main

import (
	"flag"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"IoTSpectra/internal/config"
	"IoTSpectra/internal/model"
	"IoTSpectra/internal/probe"
)

// deviceSim describes one simulated device's steady traffic shape.
type deviceSim struct {
	id       string
	dstPort  uint16
	protocol uint8
	packets  uint64
	bytes    uint64
}

var devices = []deviceSim{
	{id: "cam-entrance", dstPort: 554, protocol: 6, packets: 120, bytes: 110000},
	{id: "thermostat-hall", dstPort: 8883, protocol: 6, packets: 6, bytes: 900},
	{id: "speaker-kitchen", dstPort: 443, protocol: 6, packets: 40, bytes: 24000},
	{id: "printer-office", dstPort: 9100, protocol: 6, packets: 15, bytes: 6000},
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	interval := flag.Duration("interval", 5*time.Second, "Publish interval per batch.")
	anomalyRate := flag.Float64("anomaly-rate", 0.02, "Fraction of batches carrying an injected traffic burst.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pub, err := probe.NewPublisher(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	batchSize := cfg.Probe.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	log.Printf("Publishing synthetic flow batches for %d devices every %v", len(devices), *interval)

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	published := 0
	for {
		select {
		case <-ticker.C:
			for _, dev := range devices {
				batch := &probe.FlowBatch{
					DeviceID: dev.id,
					Flows:    synthesize(dev, batchSize, rng, *anomalyRate),
				}
				if err := pub.Publish(batch); err != nil {
					log.Printf("Failed to publish batch for '%s': %v", dev.id, err)
					continue
				}
				published++
			}
		case <-sigChan:
			log.Printf("Shutting down after %d batches.", published)
			return
		}
	}
}

// synthesize produces one batch of jittered flows for the device, optionally
// injecting a burst flow to exercise the detector.
func synthesize(dev deviceSim, n int, rng *rand.Rand, anomalyRate float64) []model.FlowRecord {
	now := time.Now().UTC()
	flows := make([]model.FlowRecord, n)
	for i := range flows {
		jitter := 0.9 + rng.Float64()*0.2
		flows[i] = model.FlowRecord{
			Timestamp:   now.Add(time.Duration(i) * time.Second),
			SrcPort:     uint16(40000 + rng.IntN(2000)),
			DstPort:     dev.dstPort,
			Protocol:    dev.protocol,
			PacketCount: uint64(float64(dev.packets) * jitter),
			ByteCount:   uint64(float64(dev.bytes) * jitter),
			Duration:    1,
		}
	}
	if rng.Float64() < anomalyRate {
		i := rng.IntN(n)
		flows[i].DstPort = 6667
		flows[i].PacketCount *= 200
		flows[i].ByteCount *= 500
		log.Printf("Injected burst flow into batch for '%s'", dev.id)
	}
	return flows
}
