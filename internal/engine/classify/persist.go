package classify

import (
	"encoding/gob"
	"fmt"
	"log"
	"os"

	"IoTSpectra/internal/engine/stat"
	"IoTSpectra/internal/model"
)

// classifierBlobVersion tags the persisted layout. Bump on incompatible
// changes; Load rejects unknown versions.
const classifierBlobVersion = 1

// classifierBlob is the portable on-disk form of a fitted forest: scaler
// statistics and tree ensembles as plain numeric arrays, no opaque
// language-specific state.
type classifierBlob struct {
	Version int
	Scaler  stat.Scaler
	Labels  []model.DeviceType
	Trees   [][]TreeNode
}

// Save serializes the fitted model to path. Fails if the forest is untrained.
func (f *Forest) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return model.ErrModelNotTrained
	}

	blob := classifierBlob{
		Version: classifierBlobVersion,
		Scaler:  f.scaler,
		Labels:  f.labels,
		Trees:   make([][]TreeNode, len(f.trees)),
	}
	for i, t := range f.trees {
		blob.Trees[i] = t.Nodes
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create classifier file '%s': %w", path, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(blob); err != nil {
		return fmt.Errorf("failed to encode classifier to gob: %w", err)
	}
	log.Printf("Device classifier saved to %s (%d trees, %d classes)", path, len(blob.Trees), len(blob.Labels))
	return nil
}

// Load restores a fitted model from path, replacing any current state.
func (f *Forest) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open classifier file '%s': %w", path, err)
	}
	defer file.Close()

	var blob classifierBlob
	if err := gob.NewDecoder(file).Decode(&blob); err != nil {
		return fmt.Errorf("failed to decode classifier gob: %w", err)
	}
	if blob.Version != classifierBlobVersion {
		return fmt.Errorf("unsupported classifier blob version %d", blob.Version)
	}

	trees := make([]*tree, len(blob.Trees))
	for i, nodes := range blob.Trees {
		trees[i] = &tree{Nodes: nodes}
	}

	f.mu.Lock()
	f.trees = trees
	f.scaler = blob.Scaler
	f.labels = blob.Labels
	f.trained = true
	f.mu.Unlock()

	log.Printf("Device classifier loaded from %s (%d trees, %d classes)", path, len(trees), len(blob.Labels))
	return nil
}
