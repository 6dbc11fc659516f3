package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"IoTSpectra/internal/config"
	"IoTSpectra/internal/engine/classify"
	"IoTSpectra/internal/engine/detect"
	_ "IoTSpectra/internal/engine/detect/impl/isolation" // Registers isolation strategy
	_ "IoTSpectra/internal/engine/detect/impl/sequence"  // Registers sequence strategy
	"IoTSpectra/internal/model"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	labeledPath := flag.String("labeled", "", "CSV of labeled feature vectors for classifier training.")
	flowsPath := flag.String("flows", "", "CSV of presumed-normal flows for detector training.")
	flag.Parse()

	if *labeledPath == "" && *flowsPath == "" {
		log.Fatal("Nothing to do: provide -labeled and/or -flows.")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *labeledPath != "" {
		trainClassifier(cfg, *labeledPath)
	}
	if *flowsPath != "" {
		trainDetector(cfg, *flowsPath)
	}
}

func trainClassifier(cfg *config.Config, path string) {
	examples, err := readLabeledCSV(path)
	if err != nil {
		log.Fatalf("Failed to read labeled examples: %v", err)
	}

	var opts []classify.Option
	if cfg.Engine.Classifier.NumTrees > 0 {
		opts = append(opts, classify.WithTrees(cfg.Engine.Classifier.NumTrees))
	}
	if cfg.Engine.Classifier.MaxDepth > 0 {
		opts = append(opts, classify.WithMaxDepth(cfg.Engine.Classifier.MaxDepth))
	}
	if cfg.Engine.Classifier.Seed != 0 {
		opts = append(opts, classify.WithSeed(cfg.Engine.Classifier.Seed))
	}

	forest := classify.NewForest(opts...)
	summary, err := forest.Train(examples)
	if err != nil {
		log.Fatalf("Classifier training failed: %v", err)
	}
	log.Printf("Classifier: %d samples, %d features, %d classes, accuracy %.3f",
		summary.SampleCount, summary.FeatureCount, len(summary.Labels), summary.Accuracy)

	if err := saveTo(cfg.Engine.Classifier.ModelPath, forest.Save); err != nil {
		log.Fatalf("Failed to save classifier: %v", err)
	}
}

func trainDetector(cfg *config.Config, path string) {
	flows, err := readFlowCSV(path)
	if err != nil {
		log.Fatalf("Failed to read flows: %v", err)
	}

	p := detect.DefaultParams()
	dcfg := cfg.Engine.Detector
	if dcfg.Contamination > 0 {
		p.Contamination = dcfg.Contamination
	}
	if dcfg.NumTrees > 0 {
		p.TreeCount = dcfg.NumTrees
	}
	if dcfg.SampleSize > 0 {
		p.SampleSize = dcfg.SampleSize
	}
	if dcfg.WindowSize > 0 {
		p.WindowSize = dcfg.WindowSize
	}
	if dcfg.Seed != 0 {
		p.Seed = dcfg.Seed
	}

	detector, err := detect.New(dcfg.Strategy, p)
	if err != nil {
		log.Fatalf("Failed to create detector: %v", err)
	}
	if err := detector.Train(flows); err != nil {
		log.Fatalf("Detector training failed: %v", err)
	}
	log.Printf("Detector: %d flows, strategy '%s'", len(flows), detector.Strategy())

	if err := saveTo(dcfg.ModelPath, detector.Save); err != nil {
		log.Fatalf("Failed to save detector: %v", err)
	}
}

func saveTo(path string, save func(string) error) error {
	if path == "" {
		return fmt.Errorf("no model path configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := save(path); err != nil {
		return err
	}
	log.Printf("Model written to %s", path)
	return nil
}

// readLabeledCSV parses rows of: label, then one column per fixed feature.
func readLabeledCSV(path string) ([]model.LabeledExample, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	wantCols := 1 + len(model.FeatureColumns)
	examples := make([]model.LabeledExample, 0, len(rows))
	for i, row := range rows {
		if len(row) != wantCols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i+1, len(row), wantCols)
		}
		features := make([]float64, len(model.FeatureColumns))
		for j := range features {
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, j+2, err)
			}
			features[j] = v
		}
		examples = append(examples, model.LabeledExample{
			Features: features,
			Label:    model.DeviceType(row[0]),
		})
	}
	return examples, nil
}

// readFlowCSV parses rows of: timestamp (RFC3339), src_port, dst_port,
// protocol, packet_count, byte_count, duration.
func readFlowCSV(path string) ([]model.FlowRecord, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	flows := make([]model.FlowRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) != 7 {
			return nil, fmt.Errorf("row %d has %d columns, want 7", i+1, len(row))
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d timestamp: %w", i+1, err)
		}
		ints := make([]uint64, 5)
		for j := 0; j < 5; j++ {
			ints[j], err = strconv.ParseUint(row[j+1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, j+2, err)
			}
		}
		duration, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d duration: %w", i+1, err)
		}
		flows = append(flows, model.FlowRecord{
			Timestamp:   ts,
			SrcPort:     uint16(ints[0]),
			DstPort:     uint16(ints[1]),
			Protocol:    uint8(ints[2]),
			PacketCount: ints[3],
			ByteCount:   ints[4],
			Duration:    duration,
		})
	}
	return flows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) > 1 {
		// Skip a header row if the first field is not parseable data.
		if _, err := strconv.ParseFloat(rows[0][len(rows[0])-1], 64); err != nil {
			rows = rows[1:]
		}
	}
	return rows, nil
}
