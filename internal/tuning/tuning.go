// Package tuning loads the gameplay knobs from YAML over built-in
// defaults, so operators can rebalance without a rebuild.
package tuning

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/neurodive/neurodive-server/internal/neural"
	"github.com/neurodive/neurodive-server/internal/pursuit"
	"github.com/neurodive/neurodive-server/internal/sim"
)

// Tuning aggregates every gameplay knob the server exposes.
type Tuning struct {
	Network    neural.GenConfig        `yaml:"network"`
	Simplified neural.SimplifiedConfig `yaml:"simplified"`
	Pursuer    pursuit.Config          `yaml:"pursuer"`
	Session    sim.Config              `yaml:"session"`
}

// Default returns the stock tuning.
func Default() Tuning {
	return Tuning{
		Network:    neural.DefaultGenConfig(),
		Simplified: neural.DefaultSimplifiedConfig(),
		Pursuer:    pursuit.DefaultConfig(),
		Session:    sim.DefaultConfig(),
	}
}

// Load reads a YAML tuning file over the defaults. Unknown keys are an
// error so typos do not silently fall back. An empty path returns the
// defaults untouched.
func Load(path string) (Tuning, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tuning: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return t, fmt.Errorf("parse tuning %s: %w", path, err)
	}
	if err := t.validate(); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

// validate rejects values the generators would otherwise accept but
// that make no sense operationally.
func (t Tuning) validate() error {
	if t.Network.NodeCount > 512 {
		return fmt.Errorf("network.node_count %d is above the 512 cap", t.Network.NodeCount)
	}
	if t.Session.VisionHops > 16 {
		return fmt.Errorf("session.vision_hops %d is above the 16 cap", t.Session.VisionHops)
	}
	if t.Pursuer.SpeedCap > 0 && t.Pursuer.BaseSpeed > t.Pursuer.SpeedCap {
		return fmt.Errorf("pursuer.base_speed %.2f exceeds pursuer.speed_cap %.2f",
			t.Pursuer.BaseSpeed, t.Pursuer.SpeedCap)
	}
	return nil
}
