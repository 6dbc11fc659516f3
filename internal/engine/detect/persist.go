package detect

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"IoTSpectra/internal/model"
)

const modelBlobVersion = 1

// modelBlob wraps a strategy-specific payload with the strategy tag that
// drives dispatch at load time.
type modelBlob struct {
	Version  int
	Strategy string
	Payload  []byte
}

// SaveModel persists a strategy's fitted state under its tag.
func SaveModel(path, strategy string, state any) error {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(state); err != nil {
		return fmt.Errorf("failed to encode %s model state: %w", strategy, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file '%s': %w", path, err)
	}
	defer file.Close()

	blob := modelBlob{Version: modelBlobVersion, Strategy: strategy, Payload: payload.Bytes()}
	if err := gob.NewEncoder(file).Encode(blob); err != nil {
		return fmt.Errorf("failed to write model blob: %w", err)
	}
	return nil
}

// LoadModel restores a strategy's fitted state, rejecting blobs written by a
// different strategy.
func LoadModel(path, strategy string, state any) error {
	blob, err := readBlob(path)
	if err != nil {
		return err
	}
	if blob.Strategy != strategy {
		return fmt.Errorf("%w: blob written by '%s', loaded as '%s'", model.ErrUnsupportedStrategy, blob.Strategy, strategy)
	}
	if err := gob.NewDecoder(bytes.NewReader(blob.Payload)).Decode(state); err != nil {
		return fmt.Errorf("failed to decode %s model state: %w", strategy, err)
	}
	return nil
}

// PeekStrategy reads only the strategy tag from a persisted model blob.
func PeekStrategy(path string) (string, error) {
	blob, err := readBlob(path)
	if err != nil {
		return "", err
	}
	return blob.Strategy, nil
}

func readBlob(path string) (*modelBlob, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file '%s': %w", path, err)
	}
	defer file.Close()

	var blob modelBlob
	if err := gob.NewDecoder(file).Decode(&blob); err != nil {
		return nil, fmt.Errorf("failed to read model blob: %w", err)
	}
	if blob.Version != modelBlobVersion {
		return nil, fmt.Errorf("unsupported model blob version %d", blob.Version)
	}
	return &blob, nil
}
