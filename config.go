package fedcoord

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// Config is the optional coordinator file. Zero values leave the
// environment configuration in place.
type Config struct {
	Coordinator CoordinatorConfig `toml:"coordinator"`
	// Hyperparams is forwarded verbatim to clients with every model.
	Hyperparams map[string]any `toml:"-"`
}

type CoordinatorConfig struct {
	MinUpdates       int    `toml:"min_updates"`
	RetainedVersions uint64 `toml:"retained_versions"`
	Aggregator       string `toml:"aggregator"`
	UpdateMode       string `toml:"update_mode"`
	WasmAggregator   string `toml:"wasm_aggregator"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	switch hp := tree.Get("hyperparams").(type) {
	case nil:
	case *toml.Tree:
		cfg.Hyperparams = hp.ToMap()
	default:
		return nil, fmt.Errorf("error unmarshaling config: hyperparams must be a table, got %T", hp)
	}

	return &cfg, nil
}
