package fl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/absmach/fedcoord/pkg/codec"
)

// ModelStore persists aggregated model versions.
type ModelStore interface {
	SaveModel(snapshot Snapshot) error
	LoadModel(version uint64) (Snapshot, error)
	ListModels() ([]uint64, error)
	Latest() (Snapshot, error)
}

var _ ModelStore = (*PersistentStorage)(nil)

// PersistentStorage keeps one JSON file per model version in a directory.
type PersistentStorage struct {
	modelsDir string
	mu        sync.RWMutex
}

type modelFile struct {
	Version uint64             `json:"model_version"`
	Vars    []codec.TensorJSON `json:"vars"`
	SavedAt time.Time          `json:"saved_at"`
}

func NewPersistentStorage(modelsDir string) (*PersistentStorage, error) {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}

	return &PersistentStorage{
		modelsDir: modelsDir,
	}, nil
}

func (ps *PersistentStorage) SaveModel(snapshot Snapshot) error {
	vars, err := codec.ToJSONAll(snapshot.Vars)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	data, err := json.MarshalIndent(modelFile{
		Version: snapshot.Version,
		Vars:    vars,
		SavedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	// Readers only ever see complete files.
	path := ps.modelPath(snapshot.Version)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	return nil
}

func (ps *PersistentStorage) LoadModel(version uint64) (Snapshot, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	data, err := os.ReadFile(ps.modelPath(version))
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrModelNotFound, version)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read model file: %w", err)
	}

	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal model: %w", err)
	}
	vars, err := codec.FromJSONAll(mf.Vars)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode model: %w", err)
	}

	return Snapshot{Version: mf.Version, Vars: vars}, nil
}

// ListModels returns stored versions in ascending order.
func (ps *PersistentStorage) ListModels() ([]uint64, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	entries, err := os.ReadDir(ps.modelsDir)
	if err != nil {
		return nil, err
	}

	var versions []uint64
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		var version uint64
		if _, err := fmt.Sscanf(entry.Name(), "model_v%d.json", &version); err == nil {
			versions = append(versions, version)
		}
	}
	slices.Sort(versions)

	return versions, nil
}

func (ps *PersistentStorage) Latest() (Snapshot, error) {
	versions, err := ps.ListModels()
	if err != nil {
		return Snapshot{}, err
	}
	if len(versions) == 0 {
		return Snapshot{}, ErrModelNotFound
	}

	return ps.LoadModel(versions[len(versions)-1])
}

func (ps *PersistentStorage) modelPath(version uint64) string {
	return filepath.Join(ps.modelsDir, fmt.Sprintf("model_v%d.json", version))
}
